package pipeline

import (
	"sync"
	"time"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// aggregator collects per-record outcomes into the run report. Enrichment
// workers touch it concurrently, so every mutation is under the mutex.
type aggregator struct {
	mu      sync.Mutex
	report  model.Report
	tags    map[model.TagID]bool
	tools   map[model.TagID]bool
	started time.Time
}

func newAggregator(src model.Source, dryRun bool) *aggregator {
	return &aggregator{
		report: model.Report{
			Source:    src,
			DryRun:    dryRun,
			StartedAt: time.Now().UTC(),
		},
		tags:    make(map[model.TagID]bool),
		tools:   make(map[model.TagID]bool),
		started: time.Now(),
	}
}

func (a *aggregator) processed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Processed++
}

func (a *aggregator) failed(sourceID, name, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Failed++
	a.report.Outcomes = append(a.report.Outcomes, model.Outcome{
		SourceID: sourceID,
		Name:     name,
		Kind:     model.OutcomeFailed,
		Reason:   reason,
	})
}

func (a *aggregator) duplicate(sourceID, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Duplicates++
	a.report.Outcomes = append(a.report.Outcomes, model.Outcome{
		SourceID: sourceID,
		Name:     name,
		Kind:     model.OutcomeDuplicate,
		Reason:   "fingerprint already present",
	})
}

func (a *aggregator) scoringDeferred() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.ScoringDeferred++
}

func (a *aggregator) warn(msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Warnings = append(a.report.Warnings, msgs...)
}

// outcomes folds one committed batch into the report, counting the tag and
// tool vocabulary of successfully inserted records.
func (a *aggregator) outcomes(batch []*model.Recipe, outcomes []model.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, o := range outcomes {
		a.report.Outcomes = append(a.report.Outcomes, o)
		switch o.Kind {
		case model.OutcomeCommitted:
			a.report.Inserted++
			if i < len(batch) {
				for _, t := range batch[i].Tags {
					a.tags[t] = true
					if t.Category() == "equipment" {
						a.tools[t] = true
					}
				}
			}
		case model.OutcomeFailed:
			a.report.Failed++
		case model.OutcomeDuplicate:
			a.report.Duplicates++
		}
	}
}

func (a *aggregator) snapshot() *model.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.report
	r.UniqueTags = len(a.tags)
	r.UniqueTools = len(a.tools)
	r.Elapsed = time.Since(a.started).Round(time.Millisecond).String()
	if r.Outcomes == nil {
		r.Outcomes = []model.Outcome{}
	}
	out := r
	return &out
}
