package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/autobill/internal/domain/billingrecord"
)

// InMemorySequenceStore implements billingrecord.SequenceRepository.
// Like the postgres counter it is rolled back with the transaction.
type InMemorySequenceStore struct {
	mu    sync.Mutex
	value int64
}

var _ billingrecord.SequenceRepository = (*InMemorySequenceStore)(nil)

func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{}
}

func (s *InMemorySequenceStore) NextValue(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value++
	return s.value, nil
}

// Value returns the last handed out value
func (s *InMemorySequenceStore) Value() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *InMemorySequenceStore) Snapshot() func() {
	s.mu.Lock()
	saved := s.value
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.value = saved
	}
}

func (s *InMemorySequenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = 0
}
