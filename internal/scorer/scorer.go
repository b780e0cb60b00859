// Package scorer produces AI-derived quality scores for canonical recipes.
package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/resilience"
	"github.com/joanies-kitchen/recipes-cli/pkg/anthropic"
)

// ErrScoringUnavailable signals that the scoring service exhausted its
// retries. Scoring is best-effort enrichment, never a gate: the record
// proceeds through the pipeline unscored.
var ErrScoringUnavailable = errors.New("scoring service unavailable")

// Result is a successful scoring outcome.
type Result struct {
	// Score is the quality rating, clamped into [0,5].
	Score float64
	// Tags are service-inferred semantic tags, possibly empty. The caller
	// filters them against the taxonomy before attaching them.
	Tags []model.TagID
}

// Config controls the scorer's model, timeout, and retry policy.
type Config struct {
	Model       string
	MaxTokens   int64
	CallTimeout time.Duration // per-call deadline, distinct from retry policy
	MaxAttempts int
}

// DefaultConfig returns the stock scorer configuration.
func DefaultConfig(model string) Config {
	return Config{
		Model:       model,
		MaxTokens:   512,
		CallTimeout: 10 * time.Second,
		MaxAttempts: 3,
	}
}

// Scorer scores recipes via the Anthropic API.
type Scorer struct {
	client anthropic.Client
	cfg    Config
}

// New creates a Scorer.
func New(client anthropic.Client, cfg Config) *Scorer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Scorer{client: client, cfg: cfg}
}

const systemPrompt = `You are a culinary editor rating recipe quality.
Given a recipe, respond with a single JSON object and nothing else:
{"score": <float 0-5>, "tags": ["<category.tag>", ...]}
Score judges clarity, completeness, and plausibility of the recipe.
Tags use categories cuisine, mealType, dietary, equipment, method, mainIngredient.
Omit "tags" if none apply.`

// serviceResponse is the JSON shape the model is instructed to return.
type serviceResponse struct {
	Score float64  `json:"score"`
	Tags  []string `json:"tags,omitempty"`
}

// Score rates a recipe's text via the scoring service. Transient failures
// are retried with backoff; when retries are exhausted it returns
// ErrScoringUnavailable and the caller proceeds with a nil score.
func (s *Scorer) Score(ctx context.Context, r *model.Recipe) (*Result, error) {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = s.cfg.MaxAttempts
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "score")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()

		return s.client.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:     s.cfg.Model,
			MaxTokens: s.cfg.MaxTokens,
			System:    systemPrompt,
			Messages: []anthropic.Message{
				{Role: "user", Content: r.Text()},
			},
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "scorer: cancelled")
		}
		zap.L().Warn("scorer: retries exhausted",
			zap.String("source_id", r.SourceID),
			zap.Error(err),
		)
		return nil, ErrScoringUnavailable
	}

	parsed, err := parseResponse(resp.Text)
	if err != nil {
		// An unparsable body is a service fault, not a record fault.
		zap.L().Warn("scorer: unparsable response",
			zap.String("source_id", r.SourceID),
			zap.Error(err),
		)
		return nil, ErrScoringUnavailable
	}

	score := parsed.Score
	if score < 0 || score > 5 {
		zap.L().Warn("scorer: out-of-range score clamped",
			zap.String("source_id", r.SourceID),
			zap.Float64("raw_score", score),
		)
		if score < 0 {
			score = 0
		} else {
			score = 5
		}
	}

	result := &Result{Score: score}
	for _, t := range parsed.Tags {
		t = strings.TrimSpace(t)
		if t != "" {
			result.Tags = append(result.Tags, model.TagID(t))
		}
	}

	zap.L().Debug("scorer: scored recipe",
		zap.String("source_id", r.SourceID),
		zap.Float64("score", score),
		zap.Int("inferred_tags", len(result.Tags)),
	)
	return result, nil
}

// parseResponse extracts the JSON object from the model's reply, tolerating
// surrounding prose or code fences.
func parseResponse(text string) (*serviceResponse, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, eris.New("no JSON object in response")
	}

	var out serviceResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, eris.Wrap(err, "decode score JSON")
	}
	return &out, nil
}
