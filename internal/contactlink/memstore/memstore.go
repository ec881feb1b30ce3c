// Package memstore provides an in-memory contactlink.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/helpdesk/internal/contactlink"
)

// Store keeps links in a map guarded by a mutex.
type Store struct {
	mu    sync.Mutex
	links map[string]contactlink.Link
}

// New returns an empty Store.
func New() *Store {
	return &Store{links: make(map[string]contactlink.Link)}
}

// Put stores a copy of l.
func (s *Store) Put(_ context.Context, l *contactlink.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.Token] = *l
	return nil
}

// Get returns a copy of the link for token.
func (s *Store) Get(_ context.Context, token string) (*contactlink.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[token]
	if !ok {
		return nil, contactlink.ErrNotFound
	}
	return &l, nil
}

// Consume marks a valid link used under the lock.
func (s *Store) Consume(_ context.Context, token string, now time.Time) (*contactlink.Link, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[token]
	if !ok || !l.ValidAt(now) {
		return nil, false, nil
	}
	l.Used = true
	l.UsedAt = &now
	s.links[token] = l
	return &l, true, nil
}

// DeleteExpired removes links that expired at or before now.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, l := range s.links {
		if !now.Before(l.ExpiresAt) {
			delete(s.links, token)
			n++
		}
	}
	return n, nil
}
