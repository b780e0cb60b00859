package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/joanies-kitchen/recipes-cli/internal/config"
	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/resilience"
)

// APIAdapter pulls recipe pages from the partner HTTP API. The cursor is the
// server-issued page token, passed back opaquely. Requests are spaced by a
// politeness limiter so the partner's quota is respected regardless of how
// the pipeline schedules chunk pulls.
type APIAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// apiPage is the wire shape of one API page.
type apiPage struct {
	Recipes       []model.RawRecord `json:"recipes"`
	NextPageToken string            `json:"next_page_token"`
}

// NewAPIAdapter creates an adapter for the partner API.
func NewAPIAdapter(cfg config.SourcesConfig) *APIAdapter {
	delay := time.Duration(cfg.APIDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 2 * time.Second
	}
	timeout := time.Duration(cfg.APITimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIAdapter{
		baseURL: cfg.APIBaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

func (a *APIAdapter) Source() model.Source {
	return model.SourceAPI
}

func (a *APIAdapter) NextBatch(ctx context.Context, cursor string, limit int) ([]model.RawRecord, string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, "", eris.Wrap(err, "api: rate limit wait")
	}

	page, err := a.fetchPage(ctx, cursor, limit)
	if err != nil {
		return nil, "", err
	}

	if len(page.Recipes) == 0 {
		return nil, "", ErrExhausted
	}
	return page.Recipes, page.NextPageToken, nil
}

func (a *APIAdapter) fetchPage(ctx context.Context, pageToken string, limit int) (*apiPage, error) {
	u, err := url.Parse(a.baseURL + "/recipes")
	if err != nil {
		return nil, eris.Wrapf(err, "api: parse url %s", a.baseURL)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "api: build request")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "api: fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, resilience.NewTransientError(
			fmt.Errorf("api: status %d fetching %s", resp.StatusCode, u.Path),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("api: status %d fetching %s", resp.StatusCode, u.Path)
	}

	var page apiPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, eris.Wrap(err, "api: decode page")
	}
	return &page, nil
}
