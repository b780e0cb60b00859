// Package normalize maps raw source records into the canonical recipe shape.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// MalformedFieldError reports a raw record field that could not be parsed
// into the canonical shape. The record is skipped; the run continues.
type MalformedFieldError struct {
	Field  string
	Reason string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed field %q: %s", e.Field, e.Reason)
}

// Thresholds configures the difficulty heuristic applied when a source does
// not provide a difficulty.
type Thresholds struct {
	EasyMaxIngredients int
	EasyMaxSteps       int
	HardMinIngredients int
	HardMinSteps       int
}

// DefaultThresholds returns the stock difficulty heuristic.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EasyMaxIngredients: 5,
		EasyMaxSteps:       5,
		HardMinIngredients: 12,
		HardMinSteps:       10,
	}
}

// Normalizer converts raw records into canonical recipes. It is a pure
// function of its input plus the difficulty thresholds; it performs no I/O.
type Normalizer struct {
	thresholds Thresholds
	now        func() time.Time
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer with the given difficulty thresholds.
func New(t Thresholds, opts ...Option) *Normalizer {
	n := &Normalizer{thresholds: t, now: time.Now}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Field name aliases accepted across sources. The first present key wins.
var (
	nameKeys         = []string{"name", "title", "recipe_name"}
	descriptionKeys  = []string{"description", "summary"}
	ingredientsKeys  = []string{"ingredients", "ingredient_list"}
	instructionsKeys = []string{"instructions", "directions", "steps", "method"}
	sourceIDKeys     = []string{"source_id", "id", "url", "slug"}
	cuisineKeys      = []string{"cuisine"}
	prepTimeKeys     = []string{"prep_time", "prep_time_minutes", "prepTime"}
	cookTimeKeys     = []string{"cook_time", "cook_time_minutes", "cookTime"}
	servingsKeys     = []string{"servings", "yields", "yield"}
	difficultyKeys   = []string{"difficulty"}
)

// Normalize maps a raw record into a canonical recipe. Display fields keep
// their original casing; case-folded shadow copies are built for matching.
func (n *Normalizer) Normalize(raw model.RawRecord, src model.Source) (*model.Recipe, error) {
	name := strings.TrimSpace(firstString(raw, nameKeys))
	if name == "" {
		return nil, &MalformedFieldError{Field: "name", Reason: "missing or empty"}
	}

	sourceID := strings.TrimSpace(firstString(raw, sourceIDKeys))
	if sourceID == "" {
		return nil, &MalformedFieldError{Field: "source_id", Reason: "missing or empty"}
	}

	ingredients, err := listField(raw, ingredientsKeys, "ingredients")
	if err != nil {
		return nil, err
	}
	if len(ingredients) == 0 {
		return nil, &MalformedFieldError{Field: "ingredients", Reason: "empty list"}
	}

	instructions, err := listField(raw, instructionsKeys, "instructions")
	if err != nil {
		return nil, err
	}
	if len(instructions) == 0 {
		return nil, &MalformedFieldError{Field: "instructions", Reason: "empty list"}
	}

	r := &model.Recipe{
		ID:             uuid.New().String(),
		Source:         src,
		SourceID:       sourceID,
		Name:           name,
		Description:    strings.TrimSpace(firstString(raw, descriptionKeys)),
		Ingredients:    ingredients,
		Instructions:   instructions,
		Cuisine:        strings.TrimSpace(firstString(raw, cuisineKeys)),
		IngestedAt:     n.now().UTC(),
		IsSystemRecipe: true,
	}

	r.PrepTimeMinutes = intField(raw, prepTimeKeys)
	r.CookTimeMinutes = intField(raw, cookTimeKeys)
	r.Servings = servingsField(raw)

	if d, ok := parseDifficulty(firstString(raw, difficultyKeys)); ok {
		r.Difficulty = d
	} else {
		r.Difficulty = n.deriveDifficulty(len(ingredients), len(instructions))
	}

	r.NameFold = Fold(name)
	r.IngredientsFold = make([]string, len(ingredients))
	for i, ing := range ingredients {
		r.IngredientsFold[i] = Fold(ing)
	}

	return r, nil
}

// Warnings returns soft quality issues that do not fail normalization.
func Warnings(r *model.Recipe) []string {
	var ws []string
	if r.Description == "" {
		ws = append(ws, fmt.Sprintf("%s: missing description", r.SourceID))
	}
	if len(strings.Join(r.Instructions, " ")) < 50 {
		ws = append(ws, fmt.Sprintf("%s: instructions shorter than 50 chars", r.SourceID))
	}
	return ws
}

func (n *Normalizer) deriveDifficulty(ingredients, steps int) model.Difficulty {
	switch {
	case ingredients <= n.thresholds.EasyMaxIngredients && steps <= n.thresholds.EasyMaxSteps:
		return model.DifficultyEasy
	case ingredients >= n.thresholds.HardMinIngredients || steps >= n.thresholds.HardMinSteps:
		return model.DifficultyHard
	default:
		return model.DifficultyMedium
	}
}

func parseDifficulty(s string) (model.Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return model.DifficultyEasy, true
	case "medium", "intermediate":
		return model.DifficultyMedium, true
	case "hard", "difficult", "advanced":
		return model.DifficultyHard, true
	}
	return "", false
}

var foldCaser = cases.Fold()

var whitespaceRe = regexp.MustCompile(`\s+`)

// Fold returns a case-folded, whitespace-collapsed copy of s for matching.
func Fold(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(foldCaser.String(s), " "))
}

// firstString returns the first non-empty string value among keys.
func firstString(raw model.RawRecord, keys []string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case fmt.Stringer:
				return s.String()
			}
		}
	}
	return ""
}

// listField parses a list-like field defensively. Accepted shapes: a native
// string slice, an []any of strings, a JSON-encoded array string, or plain
// text split on newlines or numbered steps. Anything else fails with a
// MalformedFieldError naming the field; content is never silently dropped.
func listField(raw model.RawRecord, keys []string, field string) ([]string, error) {
	var v any
	found := false
	for _, k := range keys {
		if val, ok := raw[k]; ok && val != nil {
			v = val
			found = true
			break
		}
	}
	if !found {
		return nil, &MalformedFieldError{Field: field, Reason: "missing"}
	}

	switch t := v.(type) {
	case []string:
		return cleanList(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &MalformedFieldError{Field: field, Reason: fmt.Sprintf("list element is %T, not string", item)}
			}
			out = append(out, s)
		}
		return cleanList(out), nil
	case string:
		return parseListString(t, field)
	default:
		return nil, &MalformedFieldError{Field: field, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

var stepPrefixRe = regexp.MustCompile(`^\s*(?:step\s+)?\d+[.):]\s*`)

// parseListString handles JSON-encoded arrays and list-like plain text.
func parseListString(s, field string) ([]string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, &MalformedFieldError{Field: field, Reason: "empty string"}
	}

	if strings.HasPrefix(trimmed, "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil, &MalformedFieldError{Field: field, Reason: "invalid JSON array"}
		}
		return cleanList(parsed), nil
	}

	// Newline-separated or numbered-step text.
	var lines []string
	if strings.Contains(trimmed, "\n") {
		lines = strings.Split(trimmed, "\n")
	} else if stepPrefixRe.MatchString(trimmed) {
		lines = splitNumberedSteps(trimmed)
	} else {
		// A single flat sentence is still a valid one-element list.
		lines = []string{trimmed}
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(stepPrefixRe.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, &MalformedFieldError{Field: field, Reason: "no parseable list items"}
	}
	return out, nil
}

var stepSplitRe = regexp.MustCompile(`\s+(?:step\s+)?\d+[.):]\s+`)

func splitNumberedSteps(s string) []string {
	s = stepPrefixRe.ReplaceAllString(s, "")
	return stepSplitRe.Split(s, -1)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intField(raw model.RawRecord, keys []string) *int {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int:
			return &t
		case int64:
			n := int(t)
			return &n
		case float64:
			n := int(t)
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return &n
			}
		}
	}
	return nil
}

var firstNumberRe = regexp.MustCompile(`\d+`)

// servingsField parses servings from a number or free-text yields such as
// "4 servings", "Makes 12 cookies", or "6-8 servings".
func servingsField(raw model.RawRecord) *int {
	if n := intField(raw, servingsKeys); n != nil {
		return n
	}
	for _, k := range servingsKeys {
		if s, ok := raw[k].(string); ok {
			if m := firstNumberRe.FindString(s); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					return &n
				}
			}
		}
	}
	return nil
}
