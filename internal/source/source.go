// Package source provides adapters that pull raw recipe records from
// heterogeneous origins: CSV dumps, scraped JSON files, and a partner HTTP
// API. Every adapter supports resumption through an opaque cursor.
package source

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/config"
	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// ErrExhausted is the normal end-of-source condition, not a failure.
var ErrExhausted = errors.New("source exhausted")

// Adapter produces raw records in source-specific shape. NextBatch returns
// up to limit records and the cursor for the following call; when the source
// is drained it returns ErrExhausted.
type Adapter interface {
	Source() model.Source
	NextBatch(ctx context.Context, cursor string, limit int) ([]model.RawRecord, string, error)
}

// ForSource builds the adapter for a configured source.
func ForSource(src model.Source, cfg config.SourcesConfig) (Adapter, error) {
	switch src {
	case model.SourceCSVDump:
		if cfg.CSVPath == "" {
			return nil, eris.New("source: csv_path not configured")
		}
		return NewCSVAdapter(cfg.CSVPath), nil
	case model.SourceScraped:
		if cfg.JSONPath == "" {
			return nil, eris.New("source: json_path not configured")
		}
		return NewJSONAdapter(cfg.JSONPath), nil
	case model.SourceAPI:
		if cfg.APIBaseURL == "" {
			return nil, eris.New("source: api_base_url not configured")
		}
		return NewAPIAdapter(cfg), nil
	default:
		return nil, eris.Errorf("source: unknown source %q", src)
	}
}
