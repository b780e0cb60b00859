package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// CSVAdapter reads recipe rows from a CSV dump. The cursor is the zero-based
// offset of the next data row, so interrupted runs resume where they left
// off.
type CSVAdapter struct {
	path string
}

// NewCSVAdapter creates an adapter over a CSV file with a header row.
func NewCSVAdapter(path string) *CSVAdapter {
	return &CSVAdapter{path: path}
}

func (a *CSVAdapter) Source() model.Source {
	return model.SourceCSVDump
}

func (a *CSVAdapter) NextBatch(ctx context.Context, cursor string, limit int) ([]model.RawRecord, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", eris.Wrapf(err, "csv: bad cursor %q", cursor)
		}
		offset = n
	}

	f, err := os.Open(a.path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "csv: open %s", a.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, "", ErrExhausted
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "csv: read header")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.ToLower(h))
	}

	// Skip rows consumed by previous calls.
	for i := 0; i < offset; i++ {
		if _, err := reader.Read(); err == io.EOF {
			return nil, "", ErrExhausted
		} else if err != nil {
			return nil, "", eris.Wrapf(err, "csv: skip row %d", i)
		}
	}

	var records []model.RawRecord
	for len(records) < limit {
		if ctx.Err() != nil {
			return nil, "", eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", eris.Wrapf(err, "csv: read row %d", offset+len(records))
		}
		records = append(records, rowToRecord(header, row))
	}

	if len(records) == 0 {
		return nil, "", ErrExhausted
	}
	return records, strconv.Itoa(offset + len(records)), nil
}

func rowToRecord(header, row []string) model.RawRecord {
	rec := make(model.RawRecord, len(header))
	for i, h := range header {
		if i < len(row) {
			rec[h] = strings.TrimSpace(row[i])
		}
	}
	return rec
}
