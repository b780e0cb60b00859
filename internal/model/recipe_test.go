package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		in   string
		want Source
		ok   bool
	}{
		{"csv_dump", SourceCSVDump, true},
		{"scraped_json", SourceScraped, true},
		{"partner_api", SourceAPI, true},
		{" CSV_DUMP ", SourceCSVDump, true},
		{"excel", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseSource(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestTagID_CategoryAndLeaf(t *testing.T) {
	assert.Equal(t, "cuisine", TagID("cuisine.italian").Category())
	assert.Equal(t, "italian", TagID("cuisine.italian").Leaf())
	assert.Equal(t, "equipment", TagID("equipment.dutchOven").Category())
	assert.Equal(t, "dutchOven", TagID("equipment.dutchOven").Leaf())
	assert.Equal(t, "", TagID("flat").Category())
	assert.Equal(t, "flat", TagID("flat").Leaf())
}

func TestRecipe_AddTags(t *testing.T) {
	r := &Recipe{Tags: []TagID{"cuisine.italian"}}

	r.AddTags("mealType.dinner", "cuisine.italian", "", "mealType.dinner", "equipment.skillet")

	assert.Equal(t, []TagID{"cuisine.italian", "mealType.dinner", "equipment.skillet"}, r.Tags)
}

func TestRecipe_Text(t *testing.T) {
	r := &Recipe{
		Name:         "Margherita Pizza",
		Description:  "Classic pizza.",
		Ingredients:  []string{"flour", "tomato"},
		Instructions: []string{"Bake it."},
	}

	text := r.Text()
	assert.Contains(t, text, "Margherita Pizza")
	assert.Contains(t, text, "Classic pizza.")
	assert.Contains(t, text, "Ingredients:\nflour\ntomato")
	assert.Contains(t, text, "Instructions:\nBake it.")
}

func TestRecipe_Text_SparseFields(t *testing.T) {
	r := &Recipe{Name: "Just a Name"}
	require.Equal(t, "Just a Name", r.Text())
}
