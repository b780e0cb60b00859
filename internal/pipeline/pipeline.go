// Package pipeline drives recipe records from a source adapter through
// normalization, deduplication, enrichment, and transactional batch commit.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joanies-kitchen/recipes-cli/internal/dedupe"
	"github.com/joanies-kitchen/recipes-cli/internal/fingerprint"
	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/normalize"
	"github.com/joanies-kitchen/recipes-cli/internal/scorer"
	"github.com/joanies-kitchen/recipes-cli/internal/source"
	"github.com/joanies-kitchen/recipes-cli/internal/store"
	"github.com/joanies-kitchen/recipes-cli/internal/taxonomy"
)

// Options is the run configuration. DryRun defaults to true at the CLI: an
// explicit apply flag is required before the store is mutated.
type Options struct {
	Source         model.Source
	Limit          int // 0 = unbounded
	Offset         int // records to skip before processing
	DryRun         bool
	BatchSize      int
	ChunkSize      int
	ScoringEnabled bool
	RateLimitMs    int
	Workers        int
	HeadWords      int
}

// Validate rejects configurations the run cannot start with. Config errors
// are run-fatal.
func (o *Options) Validate() error {
	if o.Source == "" {
		return eris.New("pipeline: source is required")
	}
	if o.Limit < 0 {
		return eris.Errorf("pipeline: invalid limit %d", o.Limit)
	}
	if o.Offset < 0 {
		return eris.Errorf("pipeline: invalid offset %d", o.Offset)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 100
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.RateLimitMs <= 0 {
		o.RateLimitMs = 500
	}
	return nil
}

// QualityScorer is the slice of the scorer the pipeline depends on.
type QualityScorer interface {
	Score(ctx context.Context, r *model.Recipe) (*scorer.Result, error)
}

// stage names the orchestrator's state machine positions for logging.
type stage string

const (
	stageSourcing      stage = "sourcing"
	stageNormalizing   stage = "normalizing"
	stageDeduplicating stage = "deduplicating"
	stageEnriching     stage = "enriching"
	stageCommitting    stage = "committing"
	stageReporting     stage = "reporting"
)

// Pipeline orchestrates a single ingestion run.
type Pipeline struct {
	opts       Options
	store      store.Store
	adapter    source.Adapter
	normalizer *normalize.Normalizer
	extractor  *taxonomy.Extractor
	scorer     QualityScorer
	limiter    *rate.Limiter
}

// New wires a Pipeline. scorer may be nil when scoring is disabled.
func New(
	opts Options,
	st store.Store,
	adapter source.Adapter,
	normalizer *normalize.Normalizer,
	extractor *taxonomy.Extractor,
	qs QualityScorer,
) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.ScoringEnabled && qs == nil {
		return nil, eris.New("pipeline: scoring enabled but no scorer wired")
	}

	// One token bucket for the whole run: external quota does not scale
	// with worker count.
	interval := time.Duration(opts.RateLimitMs) * time.Millisecond

	return &Pipeline{
		opts:       opts,
		store:      st,
		adapter:    adapter,
		normalizer: normalizer,
		extractor:  extractor,
		scorer:     qs,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Run executes the pipeline until the source is exhausted, the limit is
// reached, or the context is cancelled between chunks. It always returns a
// report, even for a partially failed run; the error is non-nil only for
// run-fatal conditions (store unavailable, config errors).
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	log := zap.L().With(
		zap.String("source", string(p.opts.Source)),
		zap.Bool("dry_run", p.opts.DryRun),
	)
	log.Info("pipeline: starting run",
		zap.Int("batch_size", p.opts.BatchSize),
		zap.Int("workers", p.opts.Workers),
		zap.Bool("scoring", p.opts.ScoringEnabled),
	)

	agg := newAggregator(p.opts.Source, p.opts.DryRun)
	dedup := dedupe.New(p.store)
	committer := &Committer{Store: p.store, Extractor: p.extractor, DryRun: p.opts.DryRun}

	// Run bookkeeping rows are only written in apply mode: a dry run must
	// leave every table untouched.
	var runID string
	if !p.opts.DryRun {
		run, err := p.store.CreateRun(ctx, p.opts.Source, p.opts.DryRun)
		if err != nil {
			return agg.snapshot(), eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
	}

	fatalErr := p.loop(ctx, log, agg, dedup, committer)

	report := agg.snapshot()
	log.Info("pipeline: run finished",
		zap.Int("processed", report.Processed),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
		zap.Int("scoring_deferred", report.ScoringDeferred),
		zap.String("elapsed", report.Elapsed),
	)

	if runID != "" {
		status := model.RunStatusComplete
		if fatalErr != nil {
			status = model.RunStatusFailed
		}
		// Completion uses a fresh context so a cancelled run still records
		// its report.
		finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.store.CompleteRun(finishCtx, runID, status, report); err != nil {
			log.Warn("pipeline: failed to persist run report", zap.Error(err))
		}
	}

	return report, fatalErr
}

// loop is the chunk-pull state machine. It returns only run-fatal errors.
func (p *Pipeline) loop(
	ctx context.Context,
	log *zap.Logger,
	agg *aggregator,
	dedup *dedupe.Deduplicator,
	committer *Committer,
) error {
	fpOpts := fingerprint.Options{HeadWords: p.opts.HeadWords}

	var pending []*model.Recipe
	cursor := ""
	skipped := 0
	pulled := 0

	for {
		// Cancellation is honored between chunks, never mid-record. The run
		// context is already dead here, so the flush of accepted records gets
		// its own deadline.
		if err := ctx.Err(); err != nil {
			log.Warn("pipeline: run cancelled between chunks", zap.Int("pending", len(pending)))
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return p.commitPending(flushCtx, committer, agg, pending)
		}

		chunkSize := p.opts.ChunkSize
		if p.opts.Limit > 0 && pulled+chunkSize > p.opts.Limit+p.opts.Offset {
			chunkSize = p.opts.Limit + p.opts.Offset - pulled
		}
		if chunkSize <= 0 {
			break
		}

		log.Debug("pipeline: stage", zap.String("stage", string(stageSourcing)), zap.String("cursor", cursor))
		raws, next, err := p.adapter.NextBatch(ctx, cursor, chunkSize)
		if errors.Is(err, source.ErrExhausted) {
			break
		}
		if err != nil {
			return eris.Wrap(err, "pipeline: pull chunk")
		}
		cursor = next
		pulled += len(raws)

		if skipped < p.opts.Offset {
			drop := min(p.opts.Offset-skipped, len(raws))
			raws = raws[drop:]
			skipped += drop
			if len(raws) == 0 {
				continue
			}
		}

		accepted, err := p.processChunk(ctx, log, agg, dedup, fpOpts, raws)
		if err != nil {
			return err
		}

		pending = append(pending, accepted...)
		for len(pending) >= p.opts.BatchSize {
			batch := pending[:p.opts.BatchSize]
			pending = pending[p.opts.BatchSize:]
			if err := p.commitBatch(ctx, committer, agg, batch); err != nil {
				return err
			}
		}
	}

	return p.commitPending(ctx, committer, agg, pending)
}

// processChunk normalizes, fingerprints, deduplicates, and enriches one
// chunk. Record-level failures are classified and counted, never escalated;
// only store unavailability aborts the run.
func (p *Pipeline) processChunk(
	ctx context.Context,
	log *zap.Logger,
	agg *aggregator,
	dedup *dedupe.Deduplicator,
	fpOpts fingerprint.Options,
	raws []model.RawRecord,
) ([]*model.Recipe, error) {
	// Normalize and deduplicate sequentially: acceptance order defines
	// commit order within the batch.
	var accepted []*model.Recipe
	for _, raw := range raws {
		agg.processed()

		log.Debug("pipeline: stage", zap.String("stage", string(stageNormalizing)))
		r, err := p.normalizer.Normalize(raw, p.opts.Source)
		if err != nil {
			var malformed *normalize.MalformedFieldError
			if errors.As(err, &malformed) {
				agg.failed(rawSourceID(raw), "", malformed.Error())
				log.Warn("pipeline: record failed normalization",
					zap.String("field", malformed.Field),
					zap.String("reason", malformed.Reason),
				)
				continue
			}
			agg.failed(rawSourceID(raw), "", err.Error())
			continue
		}
		agg.warn(normalize.Warnings(r)...)

		r.Fingerprint = fingerprint.Key(r, fpOpts)

		log.Debug("pipeline: stage", zap.String("stage", string(stageDeduplicating)))
		ok, err := dedup.CheckAndReserve(ctx, r.Fingerprint)
		if err != nil {
			if store.IsUnavailable(err) {
				return nil, eris.Wrap(err, "pipeline: dedupe lookup")
			}
			agg.failed(r.SourceID, r.Name, err.Error())
			continue
		}
		if !ok {
			agg.duplicate(r.SourceID, r.Name)
			log.Debug("pipeline: duplicate rejected", zap.String("source_id", r.SourceID))
			continue
		}

		accepted = append(accepted, r)
	}

	if len(accepted) == 0 {
		return nil, nil
	}

	// Enrichment is pure (tagging) or externally idempotent (scoring) per
	// record, so it fans out across the worker pool.
	log.Debug("pipeline: stage", zap.String("stage", string(stageEnriching)), zap.Int("records", len(accepted)))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, r := range accepted {
		g.Go(func() error {
			r.AddTags(p.extractor.ExtractTags(r)...)

			if !p.opts.ScoringEnabled {
				return nil
			}
			if err := p.limiter.Wait(gctx); err != nil {
				agg.scoringDeferred()
				return nil
			}
			result, err := p.scorer.Score(gctx, r)
			if err != nil {
				// Scoring is best-effort enrichment, not a gate.
				agg.scoringDeferred()
				return nil
			}
			r.QualityScore = &result.Score
			for _, t := range result.Tags {
				if p.extractor.Known(t) {
					r.AddTags(t)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: enrichment pool")
	}

	return accepted, nil
}

func (p *Pipeline) commitPending(ctx context.Context, committer *Committer, agg *aggregator, pending []*model.Recipe) error {
	for len(pending) > 0 {
		n := min(p.opts.BatchSize, len(pending))
		batch := pending[:n]
		pending = pending[n:]
		if err := p.commitBatch(ctx, committer, agg, batch); err != nil {
			return err
		}
	}
	return nil
}

// commitBatch commits one batch and folds its outcomes into the report.
// Batch failures do not cascade: the run continues unless the store itself
// is unavailable.
func (p *Pipeline) commitBatch(ctx context.Context, committer *Committer, agg *aggregator, batch []*model.Recipe) error {
	if len(batch) == 0 {
		return nil
	}
	zap.L().Debug("pipeline: stage", zap.String("stage", string(stageCommitting)), zap.Int("batch", len(batch)))

	outcomes, err := committer.Commit(ctx, batch)
	agg.outcomes(batch, outcomes)

	if err != nil {
		if store.IsUnavailable(err) {
			return eris.Wrap(err, "pipeline: commit batch")
		}
		zap.L().Error("pipeline: batch rolled back", zap.Int("records", len(batch)), zap.Error(err))
	}
	return nil
}

func rawSourceID(raw model.RawRecord) string {
	for _, k := range []string{"source_id", "id", "url", "slug"} {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
