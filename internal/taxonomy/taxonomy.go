// Package taxonomy holds the versioned tag taxonomy and the pattern-based
// tag extractor built on it.
package taxonomy

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

//go:embed default.yaml
var defaultTaxonomyYAML []byte

// Rule maps a match pattern to a tag id. The pattern is an alternation of
// literal phrases ("skillet|frying pan"); the extractor compiles it with
// case-insensitive word-boundary matching.
type Rule struct {
	Pattern string      `yaml:"pattern"`
	Tag     model.TagID `yaml:"tag"`
}

// Category groups rules under a taxonomy category such as cuisine or dietary.
type Category struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// Cookware maps match phrases to one canonical tool. Synonyms like
// "frying pan" and "skillet" collapse to a single Tool name.
type Cookware struct {
	Tag      model.TagID `yaml:"tag"`
	Name     string      `yaml:"name"`
	Category string      `yaml:"category"` // stovetop, oven, other
	Match    []string    `yaml:"match"`
}

// Taxonomy is an immutable, versioned table of tag categories, rules, and
// cookware. Multiple versions can be constructed side by side; updating the
// table means loading a new value, never mutating a shared one.
type Taxonomy struct {
	Version    string     `yaml:"version"`
	Categories []Category `yaml:"categories"`
	Cookware   []Cookware `yaml:"cookware"`
}

// Default returns the embedded taxonomy table.
func Default() (*Taxonomy, error) {
	return parse(defaultTaxonomyYAML)
}

// LoadFile reads a taxonomy table from a YAML file.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	return parse(data)
}

func parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "taxonomy: unmarshal yaml")
	}
	if t.Version == "" {
		return nil, eris.New("taxonomy: missing version")
	}
	if len(t.Categories) == 0 && len(t.Cookware) == 0 {
		return nil, eris.New("taxonomy: empty table")
	}
	return &t, nil
}

// Tags returns every tag id the taxonomy can emit.
func (t *Taxonomy) Tags() []model.TagID {
	var out []model.TagID
	for _, c := range t.Categories {
		for _, r := range c.Rules {
			out = append(out, r.Tag)
		}
	}
	for _, cw := range t.Cookware {
		out = append(out, cw.Tag)
	}
	return out
}
