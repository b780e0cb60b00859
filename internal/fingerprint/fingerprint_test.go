package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

func recipe(name string, ingredients ...string) *model.Recipe {
	return &model.Recipe{Name: name, Ingredients: ingredients}
}

func TestKey_Deterministic(t *testing.T) {
	r := recipe("Margherita Pizza", "2 cups flour", "1 cup tomato sauce", "8 oz mozzarella", "fresh basil")

	k1 := Key(r, DefaultOptions())
	k2 := Key(r, DefaultOptions())

	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "margherita pizza|")
}

func TestKey_IngredientOrderIndependent(t *testing.T) {
	a := recipe("Margherita Pizza", "2 cups flour", "1 cup tomato sauce", "8 oz mozzarella")
	b := recipe("Margherita Pizza", "8 oz mozzarella", "2 cups flour", "1 cup tomato sauce")

	assert.Equal(t, Key(a, DefaultOptions()), Key(b, DefaultOptions()))
}

func TestKey_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := recipe("MARGHERITA  PIZZA", "Flour", "Tomato sauce")
	b := recipe("margherita pizza", "flour", "tomato  sauce")

	assert.Equal(t, Key(a, DefaultOptions()), Key(b, DefaultOptions()))
}

func TestKey_CrossSourceCollision(t *testing.T) {
	// The same recipe arriving from the CSV dump and a scraper must collide:
	// the source is not part of the key.
	a := recipe("Margherita Pizza", "flour", "tomato sauce", "mozzarella")
	a.Source = model.SourceCSVDump
	b := recipe("Margherita Pizza", "flour", "tomato sauce", "mozzarella")
	b.Source = model.SourceScraped

	assert.Equal(t, Key(a, DefaultOptions()), Key(b, DefaultOptions()))
}

func TestKey_DifferentNamesDiffer(t *testing.T) {
	a := recipe("Margherita Pizza", "flour", "tomato sauce", "mozzarella")
	b := recipe("Pepperoni Pizza", "flour", "tomato sauce", "mozzarella")

	assert.NotEqual(t, Key(a, DefaultOptions()), Key(b, DefaultOptions()))
}

func TestKey_CollisionBoundary(t *testing.T) {
	// Same name with a different leading ingredient set is a different
	// recipe, not a duplicate.
	a := recipe("Margherita Pizza", "flour", "tomato sauce", "mozzarella")
	b := recipe("Margherita Pizza", "cauliflower crust", "pesto", "goat cheese")

	assert.NotEqual(t, Key(a, DefaultOptions()), Key(b, DefaultOptions()))
}

func TestKey_StripsQuantitiesAndUnits(t *testing.T) {
	a := recipe("Lentil Soup", "2 cups lentils", "1 large carrot", "½ onion")
	b := recipe("Lentil Soup", "lentils", "carrot", "onion")

	assert.Equal(t, Key(a, DefaultOptions()), Key(b, DefaultOptions()))
}

func TestKey_HeadWordsLimit(t *testing.T) {
	base := []string{"flour", "water", "salt", "yeast", "olive oil"}
	extraA := append(append([]string{}, base...), "oregano")
	extraB := append(append([]string{}, base...), "rosemary")

	a := recipe("Focaccia", extraA...)
	b := recipe("Focaccia", extraB...)

	// Ingredients past the head-word budget do not affect the key.
	assert.Equal(t, Key(a, Options{HeadWords: 5}), Key(b, Options{HeadWords: 5}))
	// Widening the budget makes them distinguishing.
	assert.NotEqual(t, Key(a, Options{HeadWords: 6}), Key(b, Options{HeadWords: 6}))
}

func TestKey_UsesFoldedShadowsWhenPresent(t *testing.T) {
	r := recipe("Pizza", "IGNORED")
	r.NameFold = "pizza"
	r.IngredientsFold = []string{"flour", "tomato"}

	assert.Equal(t, "pizza|flour,tomato", Key(r, DefaultOptions()))
}

func TestHeadWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2 cups flour", "flour"},
		{"1 large onion, diced", "onion"},
		{"½ tsp salt", "salt"},
		{"fresh basil", "basil"},
		{"2 1/2 lbs chicken thighs", "chicken"},
		{"", ""},
		{"2 cups", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, headWord(tc.in), "input %q", tc.in)
	}
}
