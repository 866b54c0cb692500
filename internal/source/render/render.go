// Package render fetches pages through a headless-browser service speaking
// the Browserless content API: POST /content with a target URL returns the
// fully rendered DOM. Used only for pages that block plain HTTP fetches,
// where product images are injected by scripts.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/sydlexius/lightstick/internal/source"
)

const maxBodyBytes = 8 << 20

// Client implements source.Renderer against one rendering endpoint. The
// resolver holds two of these: a hosted remote (token required) and a local
// self-hosted instance it downgrades to when the remote rejects the token.
type Client struct {
	httpClient *http.Client
	limiter    *source.RateLimiterMap
	logger     *slog.Logger
	endpoint   string
	creds      source.Credentials
	tokenKey   string
}

// New creates a render client. tokenKey names the credential holding the
// service token; pass "" for a tokenless local instance.
func New(creds source.Credentials, limiter *source.RateLimiterMap, logger *slog.Logger, endpoint, tokenKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger.With(slog.String("source", "render")),
		endpoint:   strings.TrimRight(endpoint, "/"),
		creds:      creds,
		tokenKey:   tokenKey,
	}
}

type contentRequest struct {
	URL         string       `json:"url"`
	GotoOptions *gotoOptions `json:"gotoOptions,omitempty"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil,omitempty"`
}

// RenderAndExtract renders a page and picks the dominant product image from
// the resulting DOM.
func (c *Client) RenderAndExtract(ctx context.Context, pageURL string) (*source.RenderedPage, error) {
	if err := c.limiter.Wait(ctx, source.NameRender); err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameRender, Cause: err}
	}

	reqURL := c.endpoint + "/content"
	if c.tokenKey != "" {
		token, err := c.creds.Get(ctx, c.tokenKey)
		if err != nil {
			return nil, fmt.Errorf("reading render token: %w", err)
		}
		if token == "" {
			return nil, &source.ErrAuthRequired{Source: source.NameRender}
		}
		reqURL += "?token=" + url.QueryEscape(token)
	}

	payload, err := json.Marshal(contentRequest{
		URL:         pageURL,
		GotoOptions: &gotoOptions{WaitUntil: "networkidle2"},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("rendering", slog.String("url", pageURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameRender, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrAuthRejected{Source: source.NameRender, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameRender,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered page: %w", err)
	}

	page := extractDominantImage(doc)
	if page.ImageURL == "" {
		return nil, &source.ErrNotFound{Source: source.NameRender, ID: pageURL}
	}
	absolutizeImage(page, pageURL)
	return page, nil
}

// extractDominantImage scans the rendered DOM for the img with the largest
// declared area, skipping page chrome. An og:image in the rendered head wins
// over attribute-less imgs but loses to a larger measured one.
func extractDominantImage(doc *html.Node) *source.RenderedPage {
	page := &source.RenderedPage{}
	var ogImage string
	bestArea := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				prop := attrVal(n, "property")
				content := strings.TrimSpace(attrVal(n, "content"))
				if prop == "og:image" && ogImage == "" {
					ogImage = content
				}
				if prop == "og:title" && page.Title == "" {
					page.Title = content
				}
			case "title":
				if page.Title == "" {
					page.Title = strings.TrimSpace(textContent(n))
				}
			case "img":
				src := strings.TrimSpace(attrVal(n, "src"))
				if src == "" || strings.HasPrefix(src, "data:") || isChrome(src) {
					break
				}
				w := atoi(attrVal(n, "width"))
				h := atoi(attrVal(n, "height"))
				area := w * h
				if area > bestArea {
					bestArea = area
					page.ImageURL = src
					page.Width = w
					page.Height = h
				} else if page.ImageURL == "" {
					page.ImageURL = src
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if bestArea == 0 && ogImage != "" {
		page.ImageURL = ogImage
		page.Width, page.Height = 0, 0
	}
	return page
}

func isChrome(src string) bool {
	lower := strings.ToLower(src)
	for _, bad := range []string{"logo", "icon", "sprite", "avatar", "pixel"} {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

func absolutizeImage(page *source.RenderedPage, pageURL string) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	ref, err := url.Parse(page.ImageURL)
	if err != nil {
		return
	}
	page.ImageURL = base.ResolveReference(ref).String()
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
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
