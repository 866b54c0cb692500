package ogmeta

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sydlexius/lightstick/internal/source"
)

func newFetcher() *Fetcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(source.NewRateLimiterMap(), logger)
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMetadataOpenGraph(t *testing.T) {
	srv := serve(t, http.StatusOK, `<!DOCTYPE html><html><head>
		<title>fallback title</title>
		<meta property="og:title" content="BLACKPINK Official Lightstick Ver.2">
		<meta property="og:image" content="https://cdn-contents.weverseshop.io/product/123.png">
		<meta name="twitter:image" content="https://cdn-contents.weverseshop.io/twitter/123.png">
	</head><body></body></html>`)

	meta, err := newFetcher().FetchMetadata(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if meta.Blocked {
		t.Error("Blocked = true, want false")
	}
	if meta.Title != "BLACKPINK Official Lightstick Ver.2" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.ImageURL != "https://cdn-contents.weverseshop.io/product/123.png" {
		t.Errorf("ImageURL = %q, og:image should win over twitter:image", meta.ImageURL)
	}
	if meta.FromRawHTML {
		t.Error("FromRawHTML = true for an og:image hit")
	}
}

func TestFetchMetadataTwitterFallback(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><head>
		<meta name="twitter:image" content="https://cdn.ktown4u.com/item/456.jpg">
	</head></html>`)

	meta, err := newFetcher().FetchMetadata(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if meta.ImageURL != "https://cdn.ktown4u.com/item/456.jpg" {
		t.Errorf("ImageURL = %q", meta.ImageURL)
	}
}

func TestFetchMetadataRawImageFallback(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><head><title>BLACKPINK lightstick | ktown4u</title></head><body>
		<img src="/assets/site-logo.png">
		<img src="https://cdn.ktown4u.com/obj/product/789.jpg">
		<img src="/images/footer-icon.svg">
	</body></html>`)

	meta, err := newFetcher().FetchMetadata(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if !meta.FromRawHTML {
		t.Error("FromRawHTML = false, want true for raw img fallback")
	}
	if meta.ImageURL != "https://cdn.ktown4u.com/obj/product/789.jpg" {
		t.Errorf("ImageURL = %q, want the shop CDN image", meta.ImageURL)
	}
	if meta.Title != "BLACKPINK lightstick | ktown4u" {
		t.Errorf("Title = %q", meta.Title)
	}
}

func TestFetchMetadataRelativeImage(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><head>
		<meta property="og:image" content="/media/product.jpg">
	</head></html>`)

	meta, err := newFetcher().FetchMetadata(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if meta.ImageURL != srv.URL+"/media/product.jpg" {
		t.Errorf("ImageURL = %q, relative URL not resolved", meta.ImageURL)
	}
}

func TestFetchMetadataBlocked(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := serve(t, status, "denied")

		meta, err := newFetcher().FetchMetadata(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("status %d: FetchMetadata: %v", status, err)
		}
		if !meta.Blocked {
			t.Errorf("status %d: Blocked = false, want true", status)
		}
	}
}

func TestFetchMetadataServerError(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, "boom")

	_, err := newFetcher().FetchMetadata(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
