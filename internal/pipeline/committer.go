package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/store"
	"github.com/joanies-kitchen/recipes-cli/internal/taxonomy"
)

// Committer writes accepted recipes to the store one transaction per batch.
// A batch is all-or-nothing: any insert failure rolls the whole batch back.
type Committer struct {
	Store     store.Store
	Extractor *taxonomy.Extractor
	DryRun    bool
}

// Commit persists a batch and returns one Outcome per recipe, in batch
// order. In dry-run mode no store call is made and every record reports as
// committed. On failure all outcomes are failed and the returned error
// carries the cause; callers classify it with store.IsUnavailable.
func (c *Committer) Commit(ctx context.Context, batch []*model.Recipe) ([]model.Outcome, error) {
	if c.DryRun {
		outcomes := make([]model.Outcome, 0, len(batch))
		for _, r := range batch {
			outcomes = append(outcomes, model.Outcome{
				SourceID: r.SourceID,
				Name:     r.Name,
				Kind:     model.OutcomeCommitted,
				Reason:   "dry-run",
			})
		}
		return outcomes, nil
	}

	tx, err := c.Store.Begin(ctx)
	if err != nil {
		return c.allFailed(batch, "begin transaction: "+err.Error()), eris.Wrap(err, "committer: begin")
	}

	// Tool ids are resolved once per batch; the same skillet row backs
	// every recipe that links to it.
	toolIDs := make(map[model.TagID]string)

	for _, r := range batch {
		if err := tx.InsertRecipe(ctx, r); err != nil {
			c.rollback(ctx, tx)
			return c.allFailed(batch, "insert recipe "+r.SourceID+": "+err.Error()),
				eris.Wrapf(err, "committer: insert recipe %s", r.SourceID)
		}

		for _, tag := range r.Tags {
			tool, ok := c.Extractor.ToolFor(tag)
			if !ok {
				continue
			}
			toolID, cached := toolIDs[tag]
			if !cached {
				toolID, err = tx.UpsertTool(ctx, tool.Name, tool.Category)
				if err != nil {
					c.rollback(ctx, tx)
					return c.allFailed(batch, "upsert tool "+tool.Name+": "+err.Error()),
						eris.Wrapf(err, "committer: upsert tool %s", tool.Name)
				}
				toolIDs[tag] = toolID
			}
			if err := tx.InsertRecipeTool(ctx, r.ID, toolID); err != nil {
				c.rollback(ctx, tx)
				return c.allFailed(batch, "link tool "+tool.Name+": "+err.Error()),
					eris.Wrapf(err, "committer: link tool %s", tool.Name)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return c.allFailed(batch, "commit: "+err.Error()), eris.Wrap(err, "committer: commit")
	}

	outcomes := make([]model.Outcome, 0, len(batch))
	for _, r := range batch {
		outcomes = append(outcomes, model.Outcome{
			SourceID: r.SourceID,
			Name:     r.Name,
			Kind:     model.OutcomeCommitted,
		})
	}
	return outcomes, nil
}

func (c *Committer) rollback(ctx context.Context, tx store.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		zap.L().Warn("committer: rollback failed", zap.Error(err))
	}
}

func (c *Committer) allFailed(batch []*model.Recipe, reason string) []model.Outcome {
	outcomes := make([]model.Outcome, 0, len(batch))
	for _, r := range batch {
		outcomes = append(outcomes, model.Outcome{
			SourceID: r.SourceID,
			Name:     r.Name,
			Kind:     model.OutcomeFailed,
			Reason:   reason,
		})
	}
	return outcomes
}
