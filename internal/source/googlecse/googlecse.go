// Package googlecse searches via the Google Custom Search JSON API. It is
// the preferred search tier: structured results, no HTML parsing, but it
// requires an API key and a configured search engine ID.
package googlecse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/lightstick/internal/source"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Adapter implements source.Searcher over the Custom Search JSON API.
type Adapter struct {
	creds      source.Credentials
	limiter    *source.RateLimiterMap
	logger     *slog.Logger
	baseURL    string
	httpClient *http.Client
}

// New creates a Google CSE adapter against the production endpoint.
func New(creds source.Credentials, limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(creds, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Google CSE adapter with a custom endpoint (for testing).
func NewWithBaseURL(creds source.Credentials, limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		creds:      creds,
		limiter:    limiter,
		logger:     logger.With(slog.String("source", "googlecse")),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the adapter identifier.
func (a *Adapter) Name() source.Name { return source.NameGoogleCSE }

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Search runs a Custom Search query scoped to shop sites and returns the
// hits in API order.
func (a *Adapter) Search(ctx context.Context, query string) ([]source.PageHit, error) {
	apiKey, err := a.creds.Get(ctx, source.CredGoogleAPIKey)
	if err != nil {
		return nil, fmt.Errorf("reading api key: %w", err)
	}
	cx, err := a.creds.Get(ctx, source.CredGoogleCX)
	if err != nil {
		return nil, fmt.Errorf("reading search engine id: %w", err)
	}
	if apiKey == "" || cx == "" {
		return nil, &source.ErrAuthRequired{Source: source.NameGoogleCSE}
	}

	if err := a.limiter.Wait(ctx, source.NameGoogleCSE); err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameGoogleCSE, Cause: err}
	}

	params := url.Values{
		"key": {apiKey},
		"cx":  {cx},
		"q":   {query},
		"num": {"10"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	a.logger.Debug("searching", slog.String("query", query))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameGoogleCSE, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrAuthRejected{Source: source.NameGoogleCSE, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameGoogleCSE,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	hits := make([]source.PageHit, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		hits = append(hits, source.PageHit{URL: link, Title: item.Title})
	}
	return hits, nil
}
