package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sydlexius/lightstick/internal/source"
	"github.com/sydlexius/lightstick/internal/source/spotify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeArtistAPI struct {
	artist *spotify.Artist
	err    error
}

func (f *fakeArtistAPI) GetArtist(_ context.Context, _ string) (*spotify.Artist, error) {
	return f.artist, f.err
}

func (f *fakeArtistAPI) SearchArtist(_ context.Context, _ string) (*spotify.Artist, error) {
	return f.artist, f.err
}

type fakeSearcher struct {
	name source.Name
	hits []source.PageHit
	err  error
}

func (f *fakeSearcher) Name() source.Name { return f.name }

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]source.PageHit, error) {
	return f.hits, f.err
}

// fakeFetcher serves canned metadata keyed by page URL.
type fakeFetcher struct {
	pages map[string]*source.PageMetadata
	errs  map[string]error
}

func (f *fakeFetcher) FetchMetadata(_ context.Context, pageURL string) (*source.PageMetadata, error) {
	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	if meta, ok := f.pages[pageURL]; ok {
		return meta, nil
	}
	return nil, &source.ErrUnavailable{Source: source.NameOGMeta, Cause: errors.New("no fixture")}
}

// fakeRenderer serves canned rendered pages keyed by page URL.
type fakeRenderer struct {
	pages map[string]*source.RenderedPage
	err   error
}

func (f *fakeRenderer) RenderAndExtract(_ context.Context, pageURL string) (*source.RenderedPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if page, ok := f.pages[pageURL]; ok {
		return page, nil
	}
	return nil, &source.ErrNotFound{Source: source.NameRender, ID: pageURL}
}

func newResolver(artists ArtistAPI, searchers []source.Searcher, fetcher source.MetadataFetcher, remote, local source.Renderer) *Resolver {
	registry := source.NewRegistry()
	for _, s := range searchers {
		registry.Register(s)
	}
	return New(artists, registry, fetcher, remote, local, testLogger(), Options{})
}

func TestResolveEmptyQuery(t *testing.T) {
	r := newResolver(&fakeArtistAPI{}, nil, &fakeFetcher{}, nil, nil)

	res := r.Resolve(context.Background(), "   ", RoleProfile)
	if res.Kind != KindFailed || res.Failure.Kind != FailInvalidQuery {
		t.Fatalf("got %+v, want invalid_query failure", res)
	}
}

func TestResolveDirectArtistSkipsScoring(t *testing.T) {
	artist := &spotify.Artist{
		ID:      "41MozSoPIsD1dJM0CLPjZF",
		Name:    "BLACKPINK",
		PageURL: "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF",
		Genres:  []string{"k-pop"},
		Images: []source.ImageAsset{
			{URL: "wide", Width: 640, Height: 480},
			{URL: "square", Width: 300, Height: 300},
		},
	}
	r := newResolver(&fakeArtistAPI{artist: artist}, nil, &fakeFetcher{}, nil, nil)

	res := r.Resolve(context.Background(), "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF", RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved", res)
	}
	if res.Resolved.Strategy != source.StrategyOfficialAPI {
		t.Errorf("Strategy = %q, want official API", res.Resolved.Strategy)
	}
	if res.Resolved.Score != nil {
		t.Error("direct resolution must not carry a relevance score")
	}
	if res.Resolved.Image.URL != "square" {
		t.Errorf("Image = %q, profile role should pick the squarest", res.Resolved.Image.URL)
	}
	if res.Resolved.Genres[0] != "k-pop" {
		t.Errorf("Genres = %v", res.Resolved.Genres)
	}
}

func TestResolveArtistAuthFailure(t *testing.T) {
	api := &fakeArtistAPI{err: &source.ErrAuthRejected{Source: source.NameSpotify, Status: 401}}
	r := newResolver(api, nil, &fakeFetcher{}, nil, nil)

	res := r.Resolve(context.Background(), "spotify:artist:2dIgFjalVxs4ThymZ67YCE", RoleProfile)
	if res.Kind != KindFailed || res.Failure.Kind != FailUpstreamAuth {
		t.Fatalf("got %+v, want upstream_auth_failure", res)
	}
}

func TestResolveArtistBannerRendersPage(t *testing.T) {
	artist := &spotify.Artist{
		Name:    "BLACKPINK",
		PageURL: "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF",
		Images:  []source.ImageAsset{{URL: "square", Width: 640, Height: 640}},
	}
	remote := &fakeRenderer{pages: map[string]*source.RenderedPage{
		artist.PageURL: {ImageURL: "https://i.scdn.co/banner.jpg", Width: 2660, Height: 1140},
	}}
	r := newResolver(&fakeArtistAPI{artist: artist}, nil, &fakeFetcher{}, remote, nil)

	res := r.Resolve(context.Background(), artist.PageURL, RoleBanner)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved", res)
	}
	if res.Resolved.Image.URL != "https://i.scdn.co/banner.jpg" {
		t.Errorf("Image = %q, want the rendered banner", res.Resolved.Image.URL)
	}
	if res.Resolved.Strategy != source.StrategyRenderedDOM {
		t.Errorf("Strategy = %q", res.Resolved.Strategy)
	}
	if res.Resolved.UsedFallback {
		t.Error("UsedFallback = true on the primary render path")
	}
}

func TestResolveArtistBannerFallsBackToAPIImages(t *testing.T) {
	artist := &spotify.Artist{
		Name:    "BLACKPINK",
		PageURL: "https://open.spotify.com/artist/41MozSoPIsD1dJM0CLPjZF",
		Images:  []source.ImageAsset{{URL: "square", Width: 640, Height: 640}},
	}
	remote := &fakeRenderer{err: &source.ErrUnavailable{Source: source.NameRender, Cause: errors.New("down")}}
	r := newResolver(&fakeArtistAPI{artist: artist}, nil, &fakeFetcher{}, remote, nil)

	res := r.Resolve(context.Background(), artist.PageURL, RoleBanner)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved", res)
	}
	if res.Resolved.Image.URL != "square" {
		t.Errorf("Image = %q, want the API image fallback", res.Resolved.Image.URL)
	}
	if !res.Resolved.UsedFallback {
		t.Error("UsedFallback = false after render tier failed")
	}
}

func TestResolveSearchAutoSelectsWithAlternatives(t *testing.T) {
	searcher := &fakeSearcher{name: source.NameGoogleCSE, hits: []source.PageHit{
		{URL: "https://www.ktown4u.com/item/1", Title: "BLACKPINK lightstick"},
		{URL: "https://www.ktown4u.com/item/2", Title: "BLACKPINK Official Lightstick Ver.2"},
	}}
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		"https://www.ktown4u.com/item/1": {ImageURL: "https://cdn.ktown4u.com/1.jpg", Title: "BLACKPINK lightstick"},
		"https://www.ktown4u.com/item/2": {ImageURL: "https://cdn.ktown4u.com/2.jpg", Title: "BLACKPINK Official Lightstick Ver.2"},
	}}
	r := newResolver(&fakeArtistAPI{}, []source.Searcher{searcher}, fetcher, nil, nil)

	res := r.Resolve(context.Background(), "BLACKPINK lightstick", RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved", res)
	}
	if res.Resolved.EntityName != "BLACKPINK lightstick" {
		t.Errorf("EntityName = %q, want the exact-match candidate", res.Resolved.EntityName)
	}
	if res.Resolved.Score == nil || res.Resolved.Score.Total < 40 {
		t.Errorf("Score = %+v, want composite at or above the auto-select threshold", res.Resolved.Score)
	}
	if len(res.Resolved.Alternatives) != 1 {
		t.Fatalf("Alternatives = %d, want 1", len(res.Resolved.Alternatives))
	}
	if res.Resolved.Alternatives[0].Title != "BLACKPINK Official Lightstick Ver.2" {
		t.Errorf("alternative = %q", res.Resolved.Alternatives[0].Title)
	}
	if res.Resolved.UsedFallback {
		t.Error("UsedFallback = true when the first tier answered")
	}
}

func TestResolveSearchLowScoresAreAmbiguous(t *testing.T) {
	searcher := &fakeSearcher{name: source.NameGoogleCSE, hits: []source.PageHit{
		{URL: "https://www.ktown4u.com/item/1", Title: "army goods listing"},
		{URL: "https://www.ktown4u.com/item/2", Title: "bomb item page"},
		{URL: "https://www.ktown4u.com/item/3", Title: "special fan event"},
	}}
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		"https://www.ktown4u.com/item/1": {ImageURL: "https://cdn.ktown4u.com/1.jpg", Title: "army goods listing"},
		"https://www.ktown4u.com/item/2": {ImageURL: "https://cdn.ktown4u.com/2.jpg", Title: "bomb item page"},
		"https://www.ktown4u.com/item/3": {ImageURL: "https://cdn.ktown4u.com/3.jpg", Title: "special fan event"},
	}}
	r := newResolver(&fakeArtistAPI{}, []source.Searcher{searcher}, fetcher, nil, nil)

	res := r.Resolve(context.Background(), "BTS army bomb special edition map of the soul", RoleProfile)
	if res.Kind != KindAmbiguous {
		t.Fatalf("got %+v, want ambiguous", res)
	}
	if len(res.Options) != 3 {
		t.Fatalf("Options = %d, want all three low scorers", len(res.Options))
	}
	for i := 1; i < len(res.Options); i++ {
		if res.Options[i].Score > res.Options[i-1].Score {
			t.Errorf("options not sorted descending at %d: %v", i, res.Options)
		}
	}
}

func TestResolveSearchFallbackTier(t *testing.T) {
	primary := &fakeSearcher{name: source.NameGoogleCSE, err: &source.ErrAuthRequired{Source: source.NameGoogleCSE}}
	secondary := &fakeSearcher{name: source.NameDuckDuckGo, hits: []source.PageHit{
		{URL: "https://www.ktown4u.com/item/1", Title: "BLACKPINK lightstick"},
	}}
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		"https://www.ktown4u.com/item/1": {ImageURL: "https://cdn.ktown4u.com/1.jpg", Title: "BLACKPINK lightstick"},
	}}
	r := newResolver(&fakeArtistAPI{}, []source.Searcher{primary, secondary}, fetcher, nil, nil)

	res := r.Resolve(context.Background(), "BLACKPINK lightstick", RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved", res)
	}
	if !res.Resolved.UsedFallback {
		t.Error("UsedFallback = false after the primary search tier failed")
	}
}

func TestResolveSearchBlockedPagesNeedRender(t *testing.T) {
	searcher := &fakeSearcher{name: source.NameGoogleCSE, hits: []source.PageHit{
		{URL: "https://shop.weverse.io/en/shop/sales/123", Title: "BLACKPINK lightstick"},
	}}
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		"https://shop.weverse.io/en/shop/sales/123": {Blocked: true},
	}}
	r := newResolver(&fakeArtistAPI{}, []source.Searcher{searcher}, fetcher, nil, nil)

	res := r.Resolve(context.Background(), "BLACKPINK lightstick", RoleProfile)
	if res.Kind != KindAmbiguous {
		t.Fatalf("got %+v, want ambiguous with needs-render options", res)
	}
	if len(res.Options) != 1 || !res.Options[0].NeedsRender {
		t.Fatalf("Options = %+v, want one needs-render entry", res.Options)
	}
}

func TestResolveFallsBackToArtistSearchByName(t *testing.T) {
	artist := &spotify.Artist{
		Name:    "NewJeans",
		PageURL: "https://open.spotify.com/artist/6HvZYsbFfjnjFrWF950C9d",
		Images:  []source.ImageAsset{{URL: "https://i.scdn.co/nj.jpg", Width: 640, Height: 640}},
	}
	searcher := &fakeSearcher{name: source.NameGoogleCSE}
	r := newResolver(&fakeArtistAPI{artist: artist}, []source.Searcher{searcher}, &fakeFetcher{}, nil, nil)

	res := r.Resolve(context.Background(), "NewJeans", RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved via artist search", res)
	}
	if res.Resolved.Strategy != source.StrategyOfficialAPI {
		t.Errorf("Strategy = %q", res.Resolved.Strategy)
	}
	if !res.Resolved.UsedFallback {
		t.Error("UsedFallback = false for the artist name fallback")
	}
}

func TestResolveNothingFound(t *testing.T) {
	searcher := &fakeSearcher{name: source.NameGoogleCSE}
	r := newResolver(&fakeArtistAPI{}, []source.Searcher{searcher}, &fakeFetcher{}, nil, nil)

	res := r.Resolve(context.Background(), "BLACKPINK lightstick", RoleProfile)
	if res.Kind != KindFailed || res.Failure.Kind != FailNoResults {
		t.Fatalf("got %+v, want no_results_found", res)
	}
	if res.Failure.Suggestion == "" {
		t.Error("failure carries no actionable suggestion")
	}
}

func TestResolveDirectShopPage(t *testing.T) {
	pageURL := "https://shop.weverse.io/en/shop/sales/123"
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		pageURL: {ImageURL: "https://cdn-contents.weverseshop.io/p.png", Title: "BLACKPINK Official Lightstick Ver.2"},
	}}
	r := newResolver(&fakeArtistAPI{}, nil, fetcher, nil, nil)

	res := r.Resolve(context.Background(), pageURL, RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved", res)
	}
	if res.Resolved.Strategy != source.StrategyStructuredMetadata {
		t.Errorf("Strategy = %q", res.Resolved.Strategy)
	}
	if res.Resolved.Score != nil {
		t.Error("direct page resolution must not carry a relevance score")
	}
}

func TestResolveRenderDowngrade(t *testing.T) {
	pageURL := "https://shop.weverse.io/en/shop/sales/123"
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		pageURL: {Blocked: true},
	}}
	remote := &fakeRenderer{err: &source.ErrAuthRejected{Source: source.NameRender, Status: 403}}
	local := &fakeRenderer{pages: map[string]*source.RenderedPage{
		pageURL: {ImageURL: "https://cdn-contents.weverseshop.io/p.png", Title: "BLACKPINK Official Lightstick Ver.2", Width: 1200, Height: 630},
	}}
	r := newResolver(&fakeArtistAPI{}, nil, fetcher, remote, local)

	res := r.Resolve(context.Background(), pageURL, RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want resolved via local downgrade", res)
	}
	if !res.Resolved.UsedFallback {
		t.Error("UsedFallback = false after remote render downgrade")
	}
	if res.Resolved.Strategy != source.StrategyRenderedDOM {
		t.Errorf("Strategy = %q", res.Resolved.Strategy)
	}
}

func TestResolveRenderDowngradeSecondFailureFatal(t *testing.T) {
	pageURL := "https://shop.weverse.io/en/shop/sales/123"
	fetcher := &fakeFetcher{pages: map[string]*source.PageMetadata{
		pageURL: {Blocked: true},
	}}
	remote := &fakeRenderer{err: &source.ErrAuthRejected{Source: source.NameRender, Status: 403}}
	local := &fakeRenderer{err: &source.ErrAuthRejected{Source: source.NameRender, Status: 401}}
	r := newResolver(&fakeArtistAPI{}, nil, fetcher, remote, local)

	res := r.Resolve(context.Background(), pageURL, RoleProfile)
	if res.Kind != KindFailed || res.Failure.Kind != FailUpstreamAuth {
		t.Fatalf("got %+v, want upstream_auth_failure after both endpoints rejected", res)
	}
}

func TestResolveRenderedCollapsesOnHighSimilarity(t *testing.T) {
	pages := map[string]*source.RenderedPage{
		"https://shop.weverse.io/en/shop/sales/1": {ImageURL: "https://cdn/1.png", Title: "BLACKPINK Official Light Stick"},
		"https://shop.weverse.io/en/shop/sales/2": {ImageURL: "https://cdn/2.png", Title: "TWICE Candy Bong"},
		"https://shop.weverse.io/en/shop/sales/3": {ImageURL: "https://cdn/3.png", Title: "Some unrelated product"},
	}
	r := newResolver(&fakeArtistAPI{}, nil, &fakeFetcher{}, &fakeRenderer{pages: pages}, nil)

	urls := []string{
		"https://shop.weverse.io/en/shop/sales/1",
		"https://shop.weverse.io/en/shop/sales/2",
		"https://shop.weverse.io/en/shop/sales/3",
	}
	res := r.ResolveRendered(context.Background(), urls, "BLACKPINK Official Light Stick", RoleProfile)
	if res.Kind != KindResolved {
		t.Fatalf("got %+v, want collapsed resolved", res)
	}
	if res.Resolved.EntityName != "BLACKPINK Official Light Stick" {
		t.Errorf("EntityName = %q, want the high-similarity candidate alone", res.Resolved.EntityName)
	}
	if len(res.Resolved.Alternatives) != 0 {
		t.Errorf("Alternatives = %v, collapse must discard the rest", res.Resolved.Alternatives)
	}
}

func TestResolveRenderedAllFail(t *testing.T) {
	remote := &fakeRenderer{err: &source.ErrUnavailable{Source: source.NameRender, Cause: errors.New("timeout")}}
	r := newResolver(&fakeArtistAPI{}, nil, &fakeFetcher{}, remote, nil)

	res := r.ResolveRendered(context.Background(), []string{"https://shop.weverse.io/en/shop/sales/1"}, "anything", RoleProfile)
	if res.Kind != KindFailed || res.Failure.Kind != FailNoResults {
		t.Fatalf("got %+v, want no_results_found", res)
	}
}
