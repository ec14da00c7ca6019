package cityatlas

import (
	"strings"
	"sync"
)

// MaxSearchResults caps how many matches a query returns.
const MaxSearchResults = 10

// searchResultZoom is the zoom level used when a selected result has only a
// point location and no bounds to fit.
const searchResultZoom = 17

// SearchIndex answers name queries over the flattened descriptors of every
// loaded layer.
//
// The index is rebuilt whenever any dataset changes. Matching is a
// case-insensitive substring test against DisplayName; results keep the
// layers' aggregation order (stable, not relevance-ranked) and are
// truncated to MaxSearchResults.
type SearchIndex struct {
	mu          sync.RWMutex
	descriptors []Descriptor
	query       string
	results     []Descriptor
}

// NewSearchIndex returns an empty search index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{}
}

// Rebuild replaces the indexed descriptors. The slice must already be in
// layer aggregation order; the index preserves it.
func (s *SearchIndex) Rebuild(descriptors []Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors = descriptors
	s.query = ""
	s.results = nil
}

// Query runs a search and stores the query with its results until the next
// Query, Rebuild, or Reset.
//
// An empty or whitespace-only query yields zero results, not all.
func (s *SearchIndex) Query(query string) []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = query
	s.results = nil

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	for _, d := range s.descriptors {
		if strings.Contains(strings.ToLower(d.DisplayName), needle) {
			s.results = append(s.results, d)
			if len(s.results) == MaxSearchResults {
				break
			}
		}
	}

	out := make([]Descriptor, len(s.results))
	copy(out, s.results)
	return out
}

// Reset clears the stored query and results list. Selecting a result
// triggers this.
func (s *SearchIndex) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = ""
	s.results = nil
}

// CurrentQuery returns the stored query string.
func (s *SearchIndex) CurrentQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// CurrentResults returns a copy of the stored results list.
func (s *SearchIndex) CurrentResults() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Descriptor, len(s.results))
	copy(out, s.results)
	return out
}

// Len returns the number of indexed descriptors.
func (s *SearchIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.descriptors)
}
