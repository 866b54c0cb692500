package source

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per adapter (requests per second). Search engines get
// conservative limits since they are scraped, not called via API contract.
var defaultRateLimits = map[Name]rate.Limit{
	NameSpotify:    10,
	NameGoogleCSE:  5,
	NameDuckDuckGo: 1,
	NameBing:       1,
	NameOGMeta:     5,
	NameRender:     1,
}

// RateLimiterMap holds one rate.Limiter per adapter, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[Name]*rate.Limiter
}

// NewRateLimiterMap creates all adapter rate limiters.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[Name]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Wait blocks until the rate limiter for the given adapter allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name Name) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
