package store

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// MemorySessionStore keeps the snapshot in process. Suitable for
// single-instance deployments.
type MemorySessionStore struct {
	snap *domain.SessionSnapshot
	mu   sync.RWMutex
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Save(ctx context.Context, snap *domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copySnapshot(snap)
	s.snap = &cp
	return nil
}

func (s *MemorySessionStore) Load(ctx context.Context) (*domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil, nil
	}
	cp := copySnapshot(s.snap)
	return &cp, nil
}

func (s *MemorySessionStore) Close() error {
	return nil
}

// copySnapshot also copies the pointer fields so callers cannot mutate
// the stored value.
func copySnapshot(snap *domain.SessionSnapshot) domain.SessionSnapshot {
	cp := *snap
	if snap.StartedAt != nil {
		t := *snap.StartedAt
		cp.StartedAt = &t
	}
	if snap.Recording != nil {
		r := *snap.Recording
		cp.Recording = &r
	}
	return cp
}

var _ SessionStore = (*MemorySessionStore)(nil)
