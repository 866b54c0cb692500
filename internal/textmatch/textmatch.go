// Package textmatch scores scraped page titles against a user query.
// All functions are pure; the pipeline decides what the numbers mean.
package textmatch

import "strings"

// Named weights for Relevance. The composite total is unbounded above,
// but in practice tops out around 180 for an exact match.
const (
	// SimilarityWeight scales the normalized edit-distance similarity.
	SimilarityWeight = 100.0
	// WordOverlapWeight scales the fraction of query words found in the title.
	WordOverlapWeight = 50.0
	// FullQueryBonus is granted when the whole query appears in the title.
	FullQueryBonus = 30.0
	// minWordLen is the shortest query word counted for overlap.
	minWordLen = 3
)

// Decision thresholds. These are two independently tunable constants used at
// different pipeline stages: AutoSelectScore gates the composite Relevance
// total, CollapseSimilarity gates the raw similarity of rendered candidates.
const (
	AutoSelectScore    = 40.0
	CollapseSimilarity = 0.85
)

// Score is the relevance of a candidate title to the original query.
type Score struct {
	Total            float64 `json:"total"`
	Similarity       float64 `json:"similarity"`
	MatchedWordRatio float64 `json:"matched_word_ratio"`
	MatchedWords     int     `json:"matched_words"`
	TotalWords       int     `json:"total_words"`
}

// Similarity returns the normalized Levenshtein similarity of two strings in
// [0,1]. Comparison is case-insensitive on runes. Two empty strings are
// defined as identical (1.0).
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))

	longer := max(len(ra), len(rb))
	if longer == 0 {
		return 1.0
	}

	return float64(longer-levenshtein(ra, rb)) / float64(longer)
}

// Relevance computes the composite score of a candidate title against the
// query: similarity, keyword overlap, and a bonus when the full query string
// appears verbatim in the title.
func Relevance(title, query string) Score {
	lowerTitle := strings.ToLower(title)
	lowerQuery := strings.ToLower(query)

	s := Score{Similarity: Similarity(title, query)}
	s.Total = s.Similarity * SimilarityWeight

	var matched int
	words := queryWords(lowerQuery)
	for _, w := range words {
		if strings.Contains(lowerTitle, w) {
			matched++
		}
	}
	if len(words) > 0 {
		s.MatchedWordRatio = float64(matched) / float64(len(words))
		s.Total += s.MatchedWordRatio * WordOverlapWeight
	}
	s.MatchedWords = matched
	s.TotalWords = len(words)

	if lowerQuery != "" && strings.Contains(lowerTitle, lowerQuery) {
		s.Total += FullQueryBonus
	}

	return s
}

// queryWords splits a query into words long enough to be meaningful.
func queryWords(lowerQuery string) []string {
	var words []string
	for _, w := range strings.Fields(lowerQuery) {
		if len([]rune(w)) >= minWordLen {
			words = append(words, w)
		}
	}
	return words
}

// levenshtein computes the edit distance between two rune slices using the
// two-row formulation.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
