package taxonomy

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// Extractor pattern-matches recipe text against a taxonomy table. It is a
// pure function of text plus taxonomy version: the same input always yields
// the same tag set, in table order.
type Extractor struct {
	tax   *Taxonomy
	rules []compiledRule
	known map[model.TagID]bool
	tools map[model.TagID]model.Tool
}

type compiledRule struct {
	tag model.TagID
	re  *regexp.Regexp
}

// New compiles a taxonomy table into an Extractor.
func New(tax *Taxonomy) (*Extractor, error) {
	e := &Extractor{
		tax:   tax,
		known: make(map[model.TagID]bool),
		tools: make(map[model.TagID]model.Tool),
	}

	for _, cat := range tax.Categories {
		for _, rule := range cat.Rules {
			re, err := compilePattern(strings.Split(rule.Pattern, "|"))
			if err != nil {
				return nil, eris.Wrapf(err, "taxonomy: compile rule %s", rule.Tag)
			}
			e.rules = append(e.rules, compiledRule{tag: rule.Tag, re: re})
			e.known[rule.Tag] = true
		}
	}

	for _, cw := range tax.Cookware {
		re, err := compilePattern(cw.Match)
		if err != nil {
			return nil, eris.Wrapf(err, "taxonomy: compile cookware %s", cw.Tag)
		}
		e.rules = append(e.rules, compiledRule{tag: cw.Tag, re: re})
		e.known[cw.Tag] = true
		e.tools[cw.Tag] = model.Tool{Name: cw.Name, Category: cw.Category}
	}

	return e, nil
}

// compilePattern builds a case-insensitive, word-boundary-aware regexp from
// literal phrases. Boundaries are letter/digit aware rather than ASCII \b so
// phrases ending in non-ASCII letters ("sauté") still match whole words, and
// "skilled" never matches a "skillet" rule.
func compilePattern(phrases []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return nil, eris.New("empty pattern")
	}
	expr := `(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`
	return regexp.Compile(expr)
}

// Version returns the taxonomy version the extractor was built from.
func (e *Extractor) Version() string {
	return e.tax.Version
}

// ExtractTags scans the recipe's description, ingredients, and instructions
// and returns the matched tag ids, deduplicated, in taxonomy table order.
// There is no cap on cross-category tag count.
func (e *Extractor) ExtractTags(r *model.Recipe) []model.TagID {
	var b strings.Builder
	b.WriteString(r.Description)
	b.WriteString("\n")
	b.WriteString(strings.Join(r.Ingredients, "\n"))
	b.WriteString("\n")
	b.WriteString(strings.Join(r.Instructions, "\n"))
	text := b.String()

	var tags []model.TagID
	for _, rule := range e.rules {
		if rule.re.MatchString(text) {
			tags = append(tags, rule.tag)
		}
	}
	return tags
}

// Known reports whether the tag id belongs to the taxonomy. Service-inferred
// tags are filtered with this before being attached to a recipe.
func (e *Extractor) Known(tag model.TagID) bool {
	return e.known[tag]
}

// ToolFor returns the canonical cookware entity for an equipment tag.
func (e *Extractor) ToolFor(tag model.TagID) (model.Tool, bool) {
	t, ok := e.tools[tag]
	return t, ok
}
