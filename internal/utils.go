package internal

import (
	"sync"

	"classifieds-scraper/pkg/models"
)

// SafeIDs records identifiers once each and remembers first-seen order.
type SafeIDs struct {
	mu    sync.Mutex
	v     map[models.ID]bool
	order []models.ID
}

func NewSafeIDs() *SafeIDs {
	return &SafeIDs{v: make(map[models.ID]bool)}
}

// Contains reports whether id was seen before and marks it as seen.
func (s *SafeIDs) Contains(id models.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v[id] {
		return true // Already seen
	}
	s.v[id] = true
	s.order = append(s.order, id)
	return false
}

// IDs returns the identifiers in the order they were first seen.
func (s *SafeIDs) IDs() []models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ID(nil), s.order...)
}

func (s *SafeIDs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
