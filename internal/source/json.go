package source

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// JSONAdapter reads raw records from a scraped JSON array file in the form
// [{...},{...}]. Elements are decoded one at a time so large dumps never
// load fully into memory. The cursor is the index of the next element.
type JSONAdapter struct {
	path string
}

// NewJSONAdapter creates an adapter over a scraped JSON dump.
func NewJSONAdapter(path string) *JSONAdapter {
	return &JSONAdapter{path: path}
}

func (a *JSONAdapter) Source() model.Source {
	return model.SourceScraped
}

func (a *JSONAdapter) NextBatch(ctx context.Context, cursor string, limit int) ([]model.RawRecord, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", eris.Wrapf(err, "json: bad cursor %q", cursor)
		}
		offset = n
	}

	f, err := os.Open(a.path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "json: open %s", a.path)
	}
	defer f.Close()

	decoder := json.NewDecoder(f)

	// Expect opening bracket.
	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, "", ErrExhausted
		}
		return nil, "", eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, "", eris.Errorf("json: expected '[', got %v", tok)
	}

	// Skip elements consumed by previous calls.
	for i := 0; i < offset && decoder.More(); i++ {
		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return nil, "", eris.Wrapf(err, "json: skip element %d", i)
		}
	}

	var records []model.RawRecord
	for len(records) < limit && decoder.More() {
		if ctx.Err() != nil {
			return nil, "", eris.Wrap(ctx.Err(), "json: context cancelled")
		}

		var rec model.RawRecord
		if err := decoder.Decode(&rec); err != nil {
			return nil, "", eris.Wrapf(err, "json: decode element %d", offset+len(records))
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, "", ErrExhausted
	}
	return records, strconv.Itoa(offset + len(records)), nil
}
