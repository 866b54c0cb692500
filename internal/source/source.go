// Package source defines the contracts shared by all candidate source
// adapters: search engines that find shop pages, metadata fetchers that pull
// an image out of a page without executing scripts, renderers that do, and
// the authoritative Spotify API.
package source

import "context"

// Name uniquely identifies a source adapter.
type Name string

// Known adapter names.
const (
	NameSpotify    Name = "spotify"
	NameGoogleCSE  Name = "googlecse"
	NameDuckDuckGo Name = "duckduckgo"
	NameBing       Name = "bing"
	NameOGMeta     Name = "ogmeta"
	NameRender     Name = "render"
)

// DisplayName returns a human-readable name for the adapter.
func (n Name) DisplayName() string {
	switch n {
	case NameSpotify:
		return "Spotify"
	case NameGoogleCSE:
		return "Google Custom Search"
	case NameDuckDuckGo:
		return "DuckDuckGo"
	case NameBing:
		return "Bing"
	case NameOGMeta:
		return "Open Graph"
	case NameRender:
		return "Headless Render"
	default:
		return string(n)
	}
}

// Strategy tags a candidate with the retrieval mechanism that produced it.
// It is provenance, not adapter identity: two adapters may share a strategy.
type Strategy string

// Known strategies, ordered from most to least trusted.
const (
	StrategyOfficialAPI        Strategy = "official-api"
	StrategyStructuredMetadata Strategy = "structured-metadata"
	StrategyRenderedDOM        Strategy = "rendered-dom"
	StrategyRawHTMLHeuristic   Strategy = "raw-html-heuristic"
)

// ImageAsset is a single image candidate. Width and height are zero when the
// source could not report dimensions.
type ImageAsset struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Area returns width×height, or 0 when dimensions are unknown.
func (a ImageAsset) Area() int {
	return a.Width * a.Height
}

// HasDimensions reports whether both dimensions are known.
func (a ImageAsset) HasDimensions() bool {
	return a.Width > 0 && a.Height > 0
}

// Candidate is one adapter's guess about the queried entity: the page it was
// found on, the adapter's best guess at the entity's display name, the image,
// and the strategy that produced it.
type Candidate struct {
	PageURL  string     `json:"page_url"`
	Title    string     `json:"title"`
	Image    ImageAsset `json:"image"`
	Strategy Strategy   `json:"strategy"`
}

// PageHit is a single search-engine result.
type PageHit struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// PageMetadata is what a no-script metadata fetch found on a page. Blocked
// means the page refused the plain fetch (bot protection) and needs the
// render tier.
type PageMetadata struct {
	ImageURL string `json:"image_url,omitempty"`
	Title    string `json:"title,omitempty"`
	Blocked  bool   `json:"blocked"`
	// FromRawHTML is set when the image came from scanning <img> tags rather
	// than Open Graph tags.
	FromRawHTML bool `json:"from_raw_html"`
}

// RenderedPage is what the headless render tier extracted from a fully
// rendered page.
type RenderedPage struct {
	ImageURL string `json:"image_url,omitempty"`
	Title    string `json:"title,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Searcher finds candidate shop pages for a free-text query.
type Searcher interface {
	Name() Name
	Search(ctx context.Context, query string) ([]PageHit, error)
}

// MetadataFetcher extracts an image and title from a page without executing
// scripts.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, pageURL string) (*PageMetadata, error)
}

// Renderer extracts an image and title from a fully rendered page. Expensive;
// the pipeline only reaches for it when a MetadataFetcher reports Blocked.
type Renderer interface {
	RenderAndExtract(ctx context.Context, pageURL string) (*RenderedPage, error)
}
