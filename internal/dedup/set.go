// Package dedup provides the per-root record of source files that were
// already compressed by this process.
package dedup

import "sync"

// Set is a concurrency-safe set of absolute file paths.
// The zero value is ready to use.
type Set struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// New creates an empty Set.
func New() *Set {
	return &Set{paths: make(map[string]struct{})}
}

// Add records path and reports whether it was newly added.
func (s *Set) Add(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paths == nil {
		s.paths = make(map[string]struct{})
	}
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}

	return true
}

// Has reports whether path is in the set.
func (s *Set) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.paths[path]
	return ok
}

// Len returns the number of paths in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.paths)
}
