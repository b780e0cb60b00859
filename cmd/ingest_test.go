package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joanies-kitchen/recipes-cli/internal/config"
)

func TestScorerConfig(t *testing.T) {
	sc := scorerConfig(config.AnthropicConfig{
		Model:       "test-model",
		MaxTokens:   256,
		TimeoutSecs: 25,
		MaxAttempts: 2,
	})

	assert.Equal(t, "test-model", sc.Model)
	assert.Equal(t, int64(256), sc.MaxTokens)
	assert.Equal(t, 25*time.Second, sc.CallTimeout)
	assert.Equal(t, 2, sc.MaxAttempts)
}

func TestScorerConfig_Defaults(t *testing.T) {
	sc := scorerConfig(config.AnthropicConfig{Model: "test-model"})

	assert.Equal(t, int64(512), sc.MaxTokens)
	assert.Equal(t, 10*time.Second, sc.CallTimeout)
	assert.Equal(t, 3, sc.MaxAttempts)
}
