// Package store defines the persistence contract required by the ingestion
// pipeline and its Postgres and SQLite implementations.
package store

import (
	"context"
	"errors"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// ErrUnavailable marks store connectivity failures. The orchestrator treats
// these as run-fatal; everything else is batch-scoped.
var ErrUnavailable = errors.New("store unavailable")

// IsUnavailable reports whether err is a connectivity failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source model.Source    `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Tx is a single batch-commit transaction. Either every insert in the batch
// is durably written by Commit, or Rollback leaves the store untouched.
type Tx interface {
	InsertRecipe(ctx context.Context, r *model.Recipe) error
	// UpsertTool creates the tool row if absent and returns its id either
	// way. The upsert is atomic at the store level, so concurrent batches
	// never create duplicate rows for the same canonical name.
	UpsertTool(ctx context.Context, name, category string) (string, error)
	InsertRecipeTool(ctx context.Context, recipeID, toolID string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the persistence interface consumed by the pipeline.
type Store interface {
	ExistsByFingerprint(ctx context.Context, key string) (bool, error)
	Begin(ctx context.Context) (Tx, error)

	// Run bookkeeping
	CreateRun(ctx context.Context, source model.Source, dryRun bool) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.Report) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
