// Package ogmeta extracts product metadata from a shop page without running
// scripts. Open Graph tags are the primary signal; when a page carries none,
// raw img tags are scanned as a weaker fallback. Pages that refuse the
// request with 401 or 403 are reported as blocked so the caller can escalate
// to a rendered fetch.
package ogmeta

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
	maxBodyBytes = 4 << 20
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Fetcher implements source.MetadataFetcher over plain HTTP.
type Fetcher struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
}

// New creates a metadata fetcher.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "ogmeta")),
	}
}

// FetchMetadata downloads a page and extracts its image and title.
func (f *Fetcher) FetchMetadata(ctx context.Context, pageURL string) (*source.PageMetadata, error) {
	if err := f.limiter.Wait(ctx, source.NameOGMeta); err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameOGMeta, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameOGMeta, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		f.logger.Debug("page blocked plain fetch",
			slog.String("url", pageURL),
			slog.Int("status", resp.StatusCode))
		return &source.PageMetadata{Blocked: true}, nil
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameOGMeta,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	meta := extract(doc)
	absolutize(meta, resp.Request.URL)
	return meta, nil
}

// extract pulls Open Graph and Twitter card tags, falling back to raw img
// tags and the document title when the page carries neither.
func extract(doc *html.Node) *source.PageMetadata {
	meta := &source.PageMetadata{}
	var twitterImage, docTitle string
	var imgCandidates []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				prop := attrVal(n, "property")
				if prop == "" {
					prop = attrVal(n, "name")
				}
				content := strings.TrimSpace(attrVal(n, "content"))
				switch prop {
				case "og:image":
					if meta.ImageURL == "" {
						meta.ImageURL = content
					}
				case "og:title":
					if meta.Title == "" {
						meta.Title = content
					}
				case "twitter:image", "twitter:image:src":
					if twitterImage == "" {
						twitterImage = content
					}
				}
			case "title":
				if docTitle == "" {
					docTitle = strings.TrimSpace(textContent(n))
				}
			case "img":
				src := strings.TrimSpace(attrVal(n, "src"))
				if src != "" && !strings.HasPrefix(src, "data:") {
					imgCandidates = append(imgCandidates, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.ImageURL == "" {
		meta.ImageURL = twitterImage
	}
	if meta.Title == "" {
		meta.Title = docTitle
	}
	if meta.ImageURL == "" {
		meta.ImageURL = pickRawImage(imgCandidates)
		meta.FromRawHTML = meta.ImageURL != ""
	}
	return meta
}

// pickRawImage prefers images hosted on a known shop CDN, then falls back to
// the first plausible candidate.
func pickRawImage(candidates []string) string {
	for _, src := range candidates {
		if source.IsShopCDNImage(src) {
			return src
		}
	}
	for _, src := range candidates {
		lower := strings.ToLower(src)
		if strings.Contains(lower, "logo") || strings.Contains(lower, "icon") || strings.Contains(lower, "sprite") {
			continue
		}
		return src
	}
	return ""
}

// absolutize resolves a relative image URL against the final page URL.
func absolutize(meta *source.PageMetadata, base *url.URL) {
	if meta.ImageURL == "" || base == nil {
		return
	}
	ref, err := url.Parse(meta.ImageURL)
	if err != nil {
		meta.ImageURL = ""
		return
	}
	meta.ImageURL = base.ResolveReference(ref).String()
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
	return b.String()
}
