package memory

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// MemoryStore keeps history in process memory. It is the default backend
// and the one used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]Candidate
	order   []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: make(map[string][]Candidate)}
}

// Append adds a copy of c to the end of runID's history.
func (s *MemoryStore) Append(ctx context.Context, runID string, c Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runID == "" {
		return errors.New("run id is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Metrics = maps.Clone(c.Metrics)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[runID]; !ok {
		s.order = append(s.order, runID)
	}
	s.history[runID] = append(s.history[runID], c)
	return nil
}

// List returns copies of runID's records in insertion order.
func (s *MemoryStore) List(ctx context.Context, runID string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[runID]
	out := make([]Candidate, len(records))
	for i, c := range records {
		c.Metrics = maps.Clone(c.Metrics)
		out[i] = c
	}
	return out, nil
}

// Runs returns run IDs in the order they were first appended to.
func (s *MemoryStore) Runs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
