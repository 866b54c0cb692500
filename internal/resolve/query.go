package resolve

import (
	"strings"

	"github.com/sydlexius/lightstick/internal/source"
	"github.com/sydlexius/lightstick/internal/source/spotify"
)

// queryClass is the result of classifying raw input before the pipeline runs.
type queryClass int

const (
	queryInvalid queryClass = iota
	querySpotifyArtist
	queryShopPage
	queryFreeText
)

// classifyQuery decides which pipeline entry to take. Direct references
// (Spotify artist URL/URI, known shop product URL) skip search and scoring.
func classifyQuery(raw string) (queryClass, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return queryInvalid, ""
	}
	if id, ok := spotify.ExtractArtistID(trimmed); ok {
		return querySpotifyArtist, id
	}
	if source.IsShopProductURL(trimmed) {
		return queryShopPage, trimmed
	}
	return queryFreeText, trimmed
}
