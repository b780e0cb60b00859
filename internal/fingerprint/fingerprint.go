// Package fingerprint derives stable duplicate-detection keys from
// normalized recipes.
package fingerprint

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/normalize"
)

// Options controls the collision boundary of the key. The head-word count is
// deliberately configurable: it trades false positives against missed
// near-duplicates.
type Options struct {
	// HeadWords is how many ingredient head-words feed the key. Default 5.
	HeadWords int
}

// DefaultOptions returns the stock collision boundary.
func DefaultOptions() Options {
	return Options{HeadWords: 5}
}

// unit words and quantity tokens stripped before the head-word is taken.
var unitWords = map[string]bool{
	"cup": true, "cups": true, "tablespoon": true, "tablespoons": true,
	"tbsp": true, "teaspoon": true, "teaspoons": true, "tsp": true,
	"ounce": true, "ounces": true, "oz": true, "pound": true, "pounds": true,
	"lb": true, "lbs": true, "gram": true, "grams": true, "g": true,
	"kg": true, "kilogram": true, "kilograms": true, "ml": true, "liter": true,
	"liters": true, "litre": true, "litres": true, "pinch": true, "dash": true,
	"clove": true, "cloves": true, "slice": true, "slices": true,
	"can": true, "cans": true, "package": true, "packages": true,
	"large": true, "medium": true, "small": true, "fresh": true,
	"chopped": true, "minced": true, "diced": true, "sliced": true,
	"ground": true, "of": true, "a": true, "an": true,
}

var quantityRe = regexp.MustCompile(`^[\d/.,¼½¾⅓⅔⅛-]+$`)

// Key builds the duplicate-detection key for a recipe: its case-folded,
// whitespace-normalized name and a sorted set of ingredient head-words.
// A cheap locality-sensitive signature, not a cryptographic hash:
// near-duplicates with reordered ingredients still collide, and the same
// recipe scraped from two sites collides across sources.
func Key(r *model.Recipe, opts Options) string {
	headWords := opts.HeadWords
	if headWords <= 0 {
		headWords = DefaultOptions().HeadWords
	}

	folded := r.IngredientsFold
	if len(folded) == 0 {
		folded = make([]string, len(r.Ingredients))
		for i, ing := range r.Ingredients {
			folded[i] = normalize.Fold(ing)
		}
	}

	heads := make([]string, 0, headWords)
	seen := make(map[string]bool, headWords)
	for _, ing := range folded {
		if len(heads) >= headWords {
			break
		}
		h := headWord(ing)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		heads = append(heads, h)
	}
	sort.Strings(heads)

	nameFold := r.NameFold
	if nameFold == "" {
		nameFold = normalize.Fold(r.Name)
	}

	return nameFold + "|" + strings.Join(heads, ",")
}

// headWord returns the first word of a folded ingredient line after
// stripping quantities, units, and descriptors.
func headWord(ing string) string {
	for _, w := range strings.Fields(ing) {
		w = strings.Trim(w, "(),.;:")
		if w == "" || quantityRe.MatchString(w) || unitWords[w] {
			continue
		}
		return w
	}
	return ""
}
