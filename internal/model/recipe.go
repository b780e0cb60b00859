// Package model defines the canonical entities shared across the ingestion pipeline.
package model

import (
	"strings"
	"time"
)

// Source identifies the origin of a raw recipe record.
type Source string

const (
	SourceCSVDump Source = "csv_dump"
	SourceScraped Source = "scraped_json"
	SourceAPI     Source = "partner_api"
)

// KnownSources lists every source the pipeline accepts.
var KnownSources = []Source{SourceCSVDump, SourceScraped, SourceAPI}

// ParseSource validates a source name from config or CLI flags.
func ParseSource(s string) (Source, bool) {
	for _, k := range KnownSources {
		if string(k) == strings.TrimSpace(strings.ToLower(s)) {
			return k, true
		}
	}
	return "", false
}

// Difficulty is the coarse effort classification of a recipe.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TagID is a hierarchical tag identifier such as "cuisine.italian" or
// "equipment.skillet". The segment before the first dot is the taxonomy
// category.
type TagID string

// Category returns the taxonomy category of the tag ("" if the id is flat).
func (t TagID) Category() string {
	if i := strings.IndexByte(string(t), '.'); i >= 0 {
		return string(t)[:i]
	}
	return ""
}

// Leaf returns the trailing path segment of the tag id.
func (t TagID) Leaf() string {
	s := string(t)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// RawRecord is a source-specific field map produced by a source adapter and
// consumed exactly once by the normalizer.
type RawRecord map[string]any

// Recipe is the canonical, storage-ready recipe entity.
type Recipe struct {
	ID          string `json:"id"`
	Source      Source `json:"source"`
	SourceID    string `json:"source_id"`
	Fingerprint string `json:"fingerprint"`

	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`

	Cuisine         string     `json:"cuisine,omitempty"`
	Difficulty      Difficulty `json:"difficulty,omitempty"`
	PrepTimeMinutes *int       `json:"prep_time_minutes,omitempty"`
	CookTimeMinutes *int       `json:"cook_time_minutes,omitempty"`
	Servings        *int       `json:"servings,omitempty"`

	// QualityScore is nil until scored; absence means "not yet scored",
	// never "scored zero".
	QualityScore *float64 `json:"quality_score,omitempty"`
	Tags         []TagID  `json:"tags,omitempty"`

	IngestedAt     time.Time `json:"ingested_at"`
	IsSystemRecipe bool      `json:"is_system_recipe"`

	// Case-folded, whitespace-collapsed shadow copies used for matching.
	// Display fields above keep their original casing.
	NameFold        string   `json:"-"`
	IngredientsFold []string `json:"-"`
}

// AddTags merges tag ids into the recipe, dropping duplicates while keeping
// first-seen order.
func (r *Recipe) AddTags(tags ...TagID) {
	seen := make(map[TagID]bool, len(r.Tags)+len(tags))
	for _, t := range r.Tags {
		seen[t] = true
	}
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		r.Tags = append(r.Tags, t)
	}
}

// Text concatenates the recipe's free-text fields for scoring and tag
// extraction.
func (r *Recipe) Text() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(r.Description)
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("\n\nIngredients:\n")
		b.WriteString(strings.Join(r.Ingredients, "\n"))
	}
	if len(r.Instructions) > 0 {
		b.WriteString("\n\nInstructions:\n")
		b.WriteString(strings.Join(r.Instructions, "\n"))
	}
	return b.String()
}

// Tool is a canonical cookware entity referenced by recipes.
type Tool struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"` // stovetop, oven, other
}
