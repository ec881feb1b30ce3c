package responder

import (
	"context"
	"fmt"
	"testing"
)

func TestMemorySet_EvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemorySet(3)
	for i := range 4 {
		if err := s.Add(ctx, fmt.Sprintf("p%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if ok, _ := s.Contains(ctx, "p0"); ok {
		t.Error("oldest id should have been evicted")
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if ok, _ := s.Contains(ctx, id); !ok {
			t.Errorf("%s missing", id)
		}
	}
}

func TestMemorySet_AddIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemorySet(2)
	_ = s.Add(ctx, "a")
	_ = s.Add(ctx, "a")
	_ = s.Add(ctx, "b")

	if ok, _ := s.Contains(ctx, "a"); !ok {
		t.Error("re-adding must not take a second slot")
	}
}
