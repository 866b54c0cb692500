package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sydlexius/lightstick/internal/source"
)

func TestExtractArtistID(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
		wantOK bool
	}{
		{"open URL", "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF", "41MozSoPIsD1dJM0CLPjZF", true},
		{"intl URL", "https://open.spotify.com/intl-ko/artist/41MozSoPIsD1dJM0CLPjZF", "41MozSoPIsD1dJM0CLPjZF", true},
		{"bare domain", "https://spotify.com/artist/3Nrfpe0tUJi4K4DXYWgMUX", "3Nrfpe0tUJi4K4DXYWgMUX", true},
		{"URI", "spotify:artist:2dIgFjalVxs4ThymZ67YCE", "2dIgFjalVxs4ThymZ67YCE", true},
		{"with query params", "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF?si=abc123", "41MozSoPIsD1dJM0CLPjZF", true},
		{"track URL", "https://open.spotify.com/track/5WbfFTuIapjdfEjUtiG5lQ", "", false},
		{"free text", "BLACKPINK lightstick", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractArtistID(tt.input)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("ExtractArtistID(%q) = (%q, %v), want (%q, %v)", tt.input, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

// newTestAdapter wires the adapter against a fake token endpoint and API.
func newTestAdapter(t *testing.T, apiHandler http.HandlerFunc, rejectToken bool) *Adapter {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rejectToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	creds := source.StaticCredentials{
		source.CredSpotifyClientID:     "test-id",
		source.CredSpotifyClientSecret: "test-secret",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithBaseURL(creds, source.NewRateLimiterMap(), logger, apiSrv.URL, tokenSrv.URL)
}

func TestGetArtist(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artists/41MozSoPIsD1dJM0CLPjZF" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "41MozSoPIsD1dJM0CLPjZF",
			"name":   "BLACKPINK",
			"genres": []string{"k-pop"},
			"followers": map[string]any{
				"total": 50000000,
			},
			"images": []map[string]any{
				{"url": "https://i.scdn.co/image/large", "width": 640, "height": 640},
				{"url": "https://i.scdn.co/image/small", "width": 160, "height": 160},
			},
			"external_urls": map[string]any{
				"spotify": "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF",
			},
		})
	}, false)

	artist, err := adapter.GetArtist(context.Background(), "41MozSoPIsD1dJM0CLPjZF")
	if err != nil {
		t.Fatalf("GetArtist: %v", err)
	}
	if artist.Name != "BLACKPINK" {
		t.Errorf("Name = %q, want BLACKPINK", artist.Name)
	}
	if artist.Followers != 50000000 {
		t.Errorf("Followers = %d, want 50000000", artist.Followers)
	}
	if len(artist.Images) != 2 || artist.Images[0].Width != 640 {
		t.Errorf("unexpected images %+v", artist.Images)
	}
	if artist.PageURL != "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF" {
		t.Errorf("PageURL = %q", artist.PageURL)
	}
}

func TestGetArtistNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, false)

	_, err := adapter.GetArtist(context.Background(), "nope")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchArtist(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "NewJeans" {
			t.Errorf("q = %q, want NewJeans", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"artists": map[string]any{
				"items": []map[string]any{
					{"id": "6HvZYsbFfjnjFrWF950C9d", "name": "NewJeans"},
				},
			},
		})
	}, false)

	artist, err := adapter.SearchArtist(context.Background(), "NewJeans")
	if err != nil {
		t.Fatalf("SearchArtist: %v", err)
	}
	if artist.ID != "6HvZYsbFfjnjFrWF950C9d" {
		t.Errorf("ID = %q", artist.ID)
	}
	if artist.PageURL != CanonicalURL(artist.ID) {
		t.Errorf("PageURL = %q, want canonical fallback", artist.PageURL)
	}
}

func TestSearchArtistEmpty(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"artists": map[string]any{"items": []map[string]any{}},
		})
	}, false)

	_, err := adapter.SearchArtist(context.Background(), "zzz")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectedCredentials(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be reached when the token grant fails")
	}, true)

	_, err := adapter.GetArtist(context.Background(), "41MozSoPIsD1dJM0CLPjZF")
	var rejected *source.ErrAuthRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
	if rejected.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rejected.Status)
	}
}

func TestMissingCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := NewWithBaseURL(source.StaticCredentials{}, source.NewRateLimiterMap(), logger, "http://127.0.0.1:0", "http://127.0.0.1:0")

	_, err := adapter.GetArtist(context.Background(), "41MozSoPIsD1dJM0CLPjZF")
	var required *source.ErrAuthRequired
	if !errors.As(err, &required) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}
