package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"cuisine.italian", "Italian"},
		{"mealType.breakfast", "Breakfast"},
		{"equipment.dutchOven", "Dutch Oven"},
		{"equipment.steamerBasket", "Steamer Basket"},
		{"dietary.glutenfree", "Gluten Free"},
		{"dietary.dairyfree", "Dairy Free"},
		{"dietary.plantbased", "Plant Based"},
		{"method.noCook", "No Cook"},
		{"mainIngredient.chicken", "Chicken"},
		{"snake_case.tag_name", "Tag Name"},
		{"kebab-case", "Kebab Case"},
		{"plain", "Plain"},
		{"", ""},
		{"trailing.", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Label(tc.tag), "tag %q", tc.tag)
	}
}

func TestLabel_SuffixWordStaysWhole(t *testing.T) {
	// A word that is exactly a suffix is not split into an empty prefix.
	assert.Equal(t, "Free", Label("promo.free"))
	assert.Equal(t, "Based", Label("x.based"))
}

func TestLabel_NonASCIIPreserved(t *testing.T) {
	assert.Equal(t, "Crème", Label("dessert.crème"))
}
