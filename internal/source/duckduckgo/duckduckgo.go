// Package duckduckgo searches the DuckDuckGo HTML endpoint. No API key, no
// JSON API: results are scraped out of the returned markup, which makes this
// the keyless fallback behind Google CSE.
package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/sydlexius/lightstick/internal/source"
)

const (
	defaultBaseURL = "https://html.duckduckgo.com"
	maxResults     = 10
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Adapter implements source.Searcher by scraping the DuckDuckGo HTML interface.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a DuckDuckGo adapter with the default endpoint.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a DuckDuckGo adapter with a custom endpoint (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "duckduckgo")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the adapter identifier.
func (a *Adapter) Name() source.Name { return source.NameDuckDuckGo }

// Search scrapes the HTML results page for a query.
func (a *Adapter) Search(ctx context.Context, query string) ([]source.PageHit, error) {
	if err := a.limiter.Wait(ctx, source.NameDuckDuckGo); err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameDuckDuckGo, Cause: err}
	}

	reqURL := a.baseURL + "/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	a.logger.Debug("searching", slog.String("query", query))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameDuckDuckGo, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameDuckDuckGo,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	return parseResults(doc), nil
}

// parseResults walks the document for result__a anchors and unwraps the
// redirect URLs DuckDuckGo routes clicks through.
func parseResults(doc *html.Node) []source.PageHit {
	var hits []source.PageHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := attrVal(n, "href")
			if target := resolveRedirect(href); target != "" {
				hits = append(hits, source.PageHit{URL: target, Title: textContent(n)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hits
}

// resolveRedirect extracts the destination from a DuckDuckGo redirect link.
// Ad redirects (y.js) are dropped; direct links pass through unchanged.
func resolveRedirect(href string) string {
	if href == "" || strings.Contains(href, "y.js") {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		if target, err := url.QueryUnescape(uddg); err == nil {
			return target
		}
		return ""
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
