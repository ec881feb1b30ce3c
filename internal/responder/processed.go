package responder

import (
	"context"
	"sync"
)

// DefaultProcessedCap bounds the in-memory processed-post set.
const DefaultProcessedCap = 10000

// ProcessedSet records posts that were handled and must not be handled
// again.
type ProcessedSet interface {
	Contains(ctx context.Context, postID string) (bool, error)
	Add(ctx context.Context, postID string) error
}

// MemorySet is a ProcessedSet that evicts the oldest IDs past its cap.
type MemorySet struct {
	mu    sync.Mutex
	cap   int
	ids   map[string]struct{}
	order []string
}

// NewMemorySet creates a MemorySet holding at most capacity IDs.
// Non-positive capacity uses DefaultProcessedCap.
func NewMemorySet(capacity int) *MemorySet {
	if capacity <= 0 {
		capacity = DefaultProcessedCap
	}
	return &MemorySet{cap: capacity, ids: make(map[string]struct{})}
}

func (s *MemorySet) Contains(_ context.Context, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[postID]
	return ok, nil
}

func (s *MemorySet) Add(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[postID]; ok {
		return nil
	}
	s.ids[postID] = struct{}{}
	s.order = append(s.order, postID)
	for len(s.order) > s.cap {
		delete(s.ids, s.order[0])
		s.order[0] = ""
		s.order = s.order[1:]
	}
	return nil
}

// Len returns the number of IDs held.
func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
