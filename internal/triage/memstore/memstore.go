// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/linnemanlabs/helpdesk/internal/triage"
)

// Store holds triage results in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	results map[string]*triage.Result // triage ID -> result
	byPost  map[string]string         // post ID -> triage ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		results: make(map[string]*triage.Result),
		byPost:  make(map[string]string),
	}
}

// Get retrieves a triage result by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, false, nil
	}
	return clone(r), true, nil
}

// GetByPostID retrieves the triage result of a post. Returns a copy.
func (s *Store) GetByPostID(_ context.Context, postID string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPost[postID]
	if !ok {
		return nil, false, nil
	}
	return clone(s.results[id]), true, nil
}

// Put stores a copy of the triage result.
func (s *Store) Put(_ context.Context, r *triage.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.ID] = clone(r)
	s.byPost[r.PostID] = r.ID
	return nil
}

func clone(r *triage.Result) *triage.Result {
	cp := *r
	cp.Keywords = slices.Clone(r.Keywords)
	cp.Patterns = slices.Clone(r.Patterns)
	if r.ContactLink != nil {
		l := *r.ContactLink
		cp.ContactLink = &l
	}
	return &cp
}
