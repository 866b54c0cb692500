package textmatch

import (
	"regexp"
	"strings"
)

// Named weights for ScoreSearchHit. Unlike Relevance, which compares a page's
// own title to the query, this heuristic ranks raw search-engine hits where
// the URL carries as much signal as the title.
const (
	// WordHitPoints is granted per query word found in the hit title.
	WordHitPoints = 10.0
	// FullQueryPoints is granted when the whole query appears in the title.
	FullQueryPoints = 20.0
	// WeverseDomainBonus favors the primary shop.
	WeverseDomainBonus = 20.0
	// WeverseProductBonus favors actual product pages over storefronts.
	WeverseProductBonus = 50.0
	// KoreanShopBonus favors the large Korean retailers.
	KoreanShopBonus = 30.0
	// NoticePenalty demotes notice and news pages, which share titles with
	// the products they announce.
	NoticePenalty = -50.0
	// minHitWordLen is the shortest query word counted for search hits.
	minHitWordLen = 2
)

var weverseProductPath = regexp.MustCompile(`/artists/\d+/sales/\d+`)

// ScoreSearchHit ranks a search-engine result by how well its title and URL
// match the query. A negative return means the hit matched no query word at
// all and should be discarded.
func ScoreSearchHit(title, rawURL, query string) float64 {
	lowerTitle := strings.ToLower(title)
	lowerQuery := strings.ToLower(query)

	var score float64
	var found int
	for _, w := range strings.Fields(lowerQuery) {
		if len([]rune(w)) < minHitWordLen {
			continue
		}
		if strings.Contains(lowerTitle, w) {
			score += WordHitPoints
			found++
		}
	}
	if found == 0 {
		return -1
	}
	if strings.Contains(lowerTitle, lowerQuery) {
		score += FullQueryPoints
	}

	if strings.Contains(rawURL, "shop.weverse.io") {
		score += WeverseDomainBonus
	}
	if strings.Contains(rawURL, "/sales/") || weverseProductPath.MatchString(rawURL) {
		score += WeverseProductBonus
	}
	if strings.Contains(rawURL, "ktown4u.com") || strings.Contains(rawURL, "kyobobook.co.kr") {
		score += KoreanShopBonus
	}
	if strings.Contains(rawURL, "/notices/") || strings.Contains(rawURL, "/notice/") {
		score += NoticePenalty
	}
	if strings.Contains(rawURL, "/news/") {
		score += NoticePenalty
	}

	return score
}
