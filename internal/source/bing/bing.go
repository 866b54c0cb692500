// Package bing scrapes Bing web search results. Last resort in the search
// cascade; Bing's markup is the least stable of the three tiers.
package bing

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
	defaultBaseURL = "https://www.bing.com"
	maxResults     = 10
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Adapter implements source.Searcher by scraping Bing's results page.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Bing adapter with the default endpoint.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Bing adapter with a custom endpoint (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "bing")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the adapter identifier.
func (a *Adapter) Name() source.Name { return source.NameBing }

// Search scrapes Bing's results page for a query.
func (a *Adapter) Search(ctx context.Context, query string) ([]source.PageHit, error) {
	if err := a.limiter.Wait(ctx, source.NameBing); err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameBing, Cause: err}
	}

	reqURL := a.baseURL + "/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	a.logger.Debug("searching", slog.String("query", query))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameBing, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameBing,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	return parseResults(doc), nil
}

// parseResults pulls the first anchor out of each b_algo result block.
func parseResults(doc *html.Node) []source.PageHit {
	var hits []source.PageHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "li" && hasClass(n, "b_algo") {
			if a := findAnchor(n); a != nil {
				href := attrVal(a, "href")
				if strings.HasPrefix(href, "http") {
					hits = append(hits, source.PageHit{URL: href, Title: textContent(a)})
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hits
}

// findAnchor returns the anchor inside the result's h2 heading.
func findAnchor(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "h2" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "a" {
				return c
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if a := findAnchor(c); a != nil {
			return a
		}
	}
	return nil
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
