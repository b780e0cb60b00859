package model

import "time"

// RunStatus tracks the lifecycle of an ingestion run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	DryRun    bool      `json:"dry_run"`
	Status    RunStatus `json:"status"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutcomeKind classifies what happened to a single record.
type OutcomeKind string

const (
	OutcomeCommitted OutcomeKind = "committed"
	OutcomeDuplicate OutcomeKind = "skipped_duplicate"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the per-record result reported by the committer.
type Outcome struct {
	SourceID string      `json:"source_id"`
	Name     string      `json:"name,omitempty"`
	Kind     OutcomeKind `json:"kind"`
	Reason   string      `json:"reason,omitempty"`
}

// Report is the externally observable contract of a run.
type Report struct {
	Source          Source    `json:"source"`
	DryRun          bool      `json:"dry_run"`
	Processed       int       `json:"processed"`
	Inserted        int       `json:"inserted"`
	Duplicates      int       `json:"duplicates"`
	Failed          int       `json:"failed"`
	ScoringDeferred int       `json:"scoring_deferred"`
	UniqueTags      int       `json:"unique_tags"`
	UniqueTools     int       `json:"unique_tools"`
	Warnings        []string  `json:"warnings,omitempty"`
	Outcomes        []Outcome `json:"outcomes,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	Elapsed         string    `json:"elapsed"`
}
