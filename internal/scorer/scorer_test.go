package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/resilience"
	"github.com/joanies-kitchen/recipes-cli/pkg/anthropic"
)

// mockClient returns canned responses in sequence.
type mockClient struct {
	responses []*anthropic.MessageResponse
	errs      []error
	calls     int
}

func (m *mockClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return nil, errors.New("mock exhausted")
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Text: text}
}

func testRecipe() *model.Recipe {
	return &model.Recipe{
		SourceID:     "rec-001",
		Name:         "Margherita Pizza",
		Ingredients:  []string{"flour", "tomato sauce", "mozzarella"},
		Instructions: []string{"Make the pizza."},
	}
}

func fastConfig() Config {
	cfg := DefaultConfig("test-model")
	cfg.MaxAttempts = 1
	return cfg
}

func TestScore_Success(t *testing.T) {
	client := &mockClient{responses: []*anthropic.MessageResponse{
		textResponse(`{"score": 4.2, "tags": ["cuisine.italian", "mealType.dinner"]}`),
	}}
	s := New(client, fastConfig())

	result, err := s.Score(context.Background(), testRecipe())
	require.NoError(t, err)
	assert.InDelta(t, 4.2, result.Score, 0.001)
	assert.Equal(t, []model.TagID{"cuisine.italian", "mealType.dinner"}, result.Tags)
}

func TestScore_NoTags(t *testing.T) {
	client := &mockClient{responses: []*anthropic.MessageResponse{
		textResponse(`{"score": 2.5}`),
	}}
	s := New(client, fastConfig())

	result, err := s.Score(context.Background(), testRecipe())
	require.NoError(t, err)
	assert.InDelta(t, 2.5, result.Score, 0.001)
	assert.Empty(t, result.Tags)
}

func TestScore_ToleratesProseAndFences(t *testing.T) {
	client := &mockClient{responses: []*anthropic.MessageResponse{
		textResponse("Here is my rating:\n```json\n{\"score\": 3.0}\n```\nHope that helps!"),
	}}
	s := New(client, fastConfig())

	result, err := s.Score(context.Background(), testRecipe())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, result.Score, 0.001)
}

func TestScore_ClampsOutOfRange(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"score": 7.5}`, 5},
		{`{"score": -1}`, 0},
	}
	for _, tc := range tests {
		client := &mockClient{responses: []*anthropic.MessageResponse{textResponse(tc.raw)}}
		s := New(client, fastConfig())

		result, err := s.Score(context.Background(), testRecipe())
		require.NoError(t, err)
		assert.Equal(t, tc.want, result.Score, "raw %s", tc.raw)
	}
}

func TestScore_UnparsableResponse(t *testing.T) {
	client := &mockClient{responses: []*anthropic.MessageResponse{
		textResponse("I cannot rate this recipe."),
	}}
	s := New(client, fastConfig())

	_, err := s.Score(context.Background(), testRecipe())
	assert.ErrorIs(t, err, ErrScoringUnavailable)
}

func TestScore_PermanentFailure(t *testing.T) {
	client := &mockClient{errs: []error{errors.New("invalid request")}}
	s := New(client, fastConfig())

	_, err := s.Score(context.Background(), testRecipe())
	assert.ErrorIs(t, err, ErrScoringUnavailable)
	assert.Equal(t, 1, client.calls, "permanent errors are not retried")
}

func TestScore_RetriesTransientThenSucceeds(t *testing.T) {
	client := &mockClient{
		errs: []error{resilience.NewTransientError(errors.New("overloaded"), 529), nil},
		responses: []*anthropic.MessageResponse{
			nil,
			textResponse(`{"score": 4.0}`),
		},
	}
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	s := New(client, cfg)

	result, err := s.Score(context.Background(), testRecipe())
	require.NoError(t, err)
	assert.InDelta(t, 4.0, result.Score, 0.001)
	assert.Equal(t, 2, client.calls)
}

func TestScore_Cancelled(t *testing.T) {
	client := &mockClient{}
	s := New(client, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Score(ctx, testRecipe())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrScoringUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseResponse(t *testing.T) {
	out, err := parseResponse(`{"score": 1.5, "tags": ["dietary.vegan"]}`)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out.Score, 0.001)
	assert.Equal(t, []string{"dietary.vegan"}, out.Tags)

	_, err = parseResponse("no json here")
	assert.Error(t, err)

	_, err = parseResponse(`{"score": "broken"`)
	assert.Error(t, err)
}
