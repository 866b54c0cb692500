package resolve

import (
	"github.com/sydlexius/lightstick/internal/source"
	"github.com/sydlexius/lightstick/internal/textmatch"
)

// Role is the intended use of the selected image.
type Role string

const (
	RoleProfile Role = "profile"
	RoleBanner  Role = "banner"
)

// ParseRole normalizes a role string, defaulting to profile.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "", string(RoleProfile):
		return RoleProfile, true
	case string(RoleBanner):
		return RoleBanner, true
	}
	return "", false
}

// Kind tags the terminal state of a resolution.
type Kind string

const (
	KindResolved  Kind = "resolved"
	KindAmbiguous Kind = "ambiguous"
	KindFailed    Kind = "failed"
)

// FailureKind classifies a failed resolution.
type FailureKind string

const (
	FailInvalidQuery        FailureKind = "invalid_query"
	FailNoResults           FailureKind = "no_results_found"
	FailUpstreamAuth        FailureKind = "upstream_auth_failure"
	FailUpstreamUnavailable FailureKind = "upstream_unavailable"
)

// Resolved is the happy-path payload: one selected image with provenance.
type Resolved struct {
	EntityName   string            `json:"entityName"`
	SourceURL    string            `json:"sourceUrl"`
	Image        source.ImageAsset `json:"image"`
	Role         Role              `json:"role"`
	Strategy     source.Strategy   `json:"strategy"`
	UsedFallback bool              `json:"usedFallback"`
	Genres       []string          `json:"genres,omitempty"`
	Followers    int               `json:"followers,omitempty"`
	Alternatives []Alternative     `json:"alternatives,omitempty"`
	Score        *textmatch.Score  `json:"score,omitempty"`
}

// Alternative is a runner-up candidate attached to a Resolved result as
// metadata. Not independently selectable.
type Alternative struct {
	PageURL  string  `json:"pageUrl"`
	Title    string  `json:"title"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Score    float64 `json:"score"`
}

// Option is one entry in an Ambiguous result. NeedsRender marks pages that
// blocked the plain fetch and need the render tier.
type Option struct {
	PageURL     string  `json:"pageUrl"`
	Title       string  `json:"title"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Score       float64 `json:"score,omitempty"`
	NeedsRender bool    `json:"needsRender,omitempty"`
}

// Failure carries a classified error with an actionable suggestion.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Result is the pipeline's terminal output, a tagged union keyed on Kind.
type Result struct {
	Kind     Kind      `json:"kind"`
	Resolved *Resolved `json:"resolved,omitempty"`
	Options  []Option  `json:"options,omitempty"`
	Failure  *Failure  `json:"failure,omitempty"`
}

func resolved(r *Resolved) *Result {
	return &Result{Kind: KindResolved, Resolved: r}
}

func ambiguous(options []Option) *Result {
	return &Result{Kind: KindAmbiguous, Options: options}
}

func failed(kind FailureKind, message, suggestion string) *Result {
	return &Result{Kind: KindFailed, Failure: &Failure{
		Kind:       kind,
		Message:    message,
		Suggestion: suggestion,
	}}
}
