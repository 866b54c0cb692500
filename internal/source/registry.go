package source

import "sync"

// searchPriority is the fixed order search adapters are tried in: the
// structured API first when configured, then the scraped engines, cheapest
// and most reliable first.
var searchPriority = []Name{NameGoogleCSE, NameDuckDuckGo, NameBing}

// Registry holds registered search adapters keyed by name.
type Registry struct {
	mu        sync.RWMutex
	searchers map[Name]Searcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{searchers: make(map[Name]Searcher)}
}

// Register adds a search adapter to the registry.
func (r *Registry) Register(s Searcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchers[s.Name()] = s
}

// Searchers returns the registered search adapters in priority order.
func (r *Registry) Searchers() []Searcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Searcher
	for _, name := range searchPriority {
		if s, ok := r.searchers[name]; ok {
			result = append(result, s)
		}
	}
	return result
}
