// Package spotify is the authoritative artist adapter. Unlike the scraped
// sources it returns trusted data: results from here never pass through
// relevance scoring.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/lightstick/internal/source"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// artistURLPatterns match the Spotify URL and URI shapes that carry a stable
// artist identifier.
var artistURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?artist/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`spotify\.com/artist/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`spotify:artist:([a-zA-Z0-9]+)`),
}

// ExtractArtistID pulls a Spotify artist ID out of a URL or URI. Returns
// false when the input does not reference an artist.
func ExtractArtistID(raw string) (string, bool) {
	for _, p := range artistURLPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// CanonicalURL returns the public artist page URL for an ID.
func CanonicalURL(id string) string {
	return "https://open.spotify.com/artist/" + id
}

// Artist is the authoritative entity data returned by the API.
type Artist struct {
	ID        string
	Name      string
	Genres    []string
	Followers int
	Images    []source.ImageAsset
	PageURL   string
}

// Adapter implements the authoritative entity API over Spotify's Web API
// using the client-credentials flow.
type Adapter struct {
	creds    source.Credentials
	limiter  *source.RateLimiterMap
	logger   *slog.Logger
	baseURL  string
	tokenURL string

	mu         sync.Mutex
	cachedID   string
	cachedTS   oauth2.TokenSource
	httpClient *http.Client
}

// New creates a Spotify adapter with default endpoints.
func New(creds source.Credentials, limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(creds, limiter, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify adapter with custom endpoints (for testing).
func NewWithBaseURL(creds source.Credentials, limiter *source.RateLimiterMap, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	return &Adapter{
		creds:    creds,
		limiter:  limiter,
		logger:   logger.With(slog.String("source", "spotify")),
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenURL: tokenURL,
	}
}

// Name returns the adapter identifier.
func (a *Adapter) Name() source.Name { return source.NameSpotify }

// GetArtist fetches authoritative data for an artist by Spotify ID.
func (a *Adapter) GetArtist(ctx context.Context, id string) (*Artist, error) {
	body, err := a.doRequest(ctx, a.baseURL+"/artists/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var resp artistResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}
	if resp.ID == "" {
		return nil, &source.ErrNotFound{Source: source.NameSpotify, ID: id}
	}

	return mapArtist(&resp), nil
}

// SearchArtist searches Spotify by name and returns the best match, or
// ErrNotFound when Spotify has nothing.
func (a *Adapter) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	params := url.Values{
		"type":  {"artist"},
		"q":     {name},
		"limit": {"1"},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Artists.Items) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameSpotify, ID: name}
	}

	return mapArtist(&resp.Artists.Items[0]), nil
}

func mapArtist(resp *artistResponse) *Artist {
	artist := &Artist{
		ID:        resp.ID,
		Name:      resp.Name,
		Genres:    resp.Genres,
		Followers: resp.Followers.Total,
		PageURL:   resp.External.Spotify,
	}
	if artist.PageURL == "" {
		artist.PageURL = CanonicalURL(resp.ID)
	}
	for _, img := range resp.Images {
		if img.URL == "" {
			continue
		}
		artist.Images = append(artist.Images, source.ImageAsset{
			URL:    img.URL,
			Width:  img.Width,
			Height: img.Height,
		})
	}
	return artist
}

// client returns an HTTP client carrying a cached client-credentials token.
// The token source is rebuilt when the configured credentials change, and
// dropped on auth rejection so the next call starts fresh.
func (a *Adapter) client(ctx context.Context) (*http.Client, error) {
	clientID, err := a.creds.Get(ctx, source.CredSpotifyClientID)
	if err != nil {
		return nil, fmt.Errorf("reading client id: %w", err)
	}
	clientSecret, err := a.creds.Get(ctx, source.CredSpotifyClientSecret)
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}
	if clientID == "" || clientSecret == "" {
		return nil, &source.ErrAuthRequired{Source: source.NameSpotify}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cachedTS == nil || a.cachedID != clientID {
		cfg := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     a.tokenURL,
		}
		a.cachedTS = cfg.TokenSource(context.Background())
		a.cachedID = clientID
		a.httpClient = &http.Client{
			Transport: &oauth2.Transport{Source: a.cachedTS},
			Timeout:   15 * time.Second,
		}
	}
	return a.httpClient, nil
}

func (a *Adapter) invalidateToken() {
	a.mu.Lock()
	a.cachedTS = nil
	a.httpClient = nil
	a.mu.Unlock()
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, source.NameSpotify); err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameSpotify, Cause: err}
	}

	client, err := a.client(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := client.Do(req)
	if err != nil {
		// A rejected client-credentials grant surfaces as a RetrieveError
		// from the transport, not as a status code.
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			a.invalidateToken()
			return nil, &source.ErrAuthRejected{Source: source.NameSpotify, Status: re.Response.StatusCode}
		}
		return nil, &source.ErrUnavailable{Source: source.NameSpotify, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		a.invalidateToken()
		return nil, &source.ErrAuthRejected{Source: source.NameSpotify, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrNotFound{Source: source.NameSpotify, ID: reqURL}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
