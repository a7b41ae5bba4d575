package memory

import (
	"context"
	"sort"
	"sync"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// ExitExecutionStore is an in-memory implementation of
// storage.ExitExecutionStore.
type ExitExecutionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExitExecution // keyed by execution id
}

// NewExitExecutionStore creates a new in-memory exit execution store.
func NewExitExecutionStore() *ExitExecutionStore {
	return &ExitExecutionStore{
		data: make(map[string]*domain.ExitExecution),
	}
}

var _ storage.ExitExecutionStore = (*ExitExecutionStore)(nil)

// Insert adds a new execution. Returns ErrDuplicateKey if the id exists.
func (s *ExitExecutionStore) Insert(_ context.Context, e *domain.ExitExecution) error {
	if e == nil || e.ID == "" || e.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *e
	s.data[e.ID] = &copy
	return nil
}

// GetByPositionID retrieves all executions for a position, ordered by
// execution time ASC.
func (s *ExitExecutionStore) GetByPositionID(_ context.Context, positionID string) ([]*domain.ExitExecution, error) {
	if positionID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExitExecution
	for _, e := range s.data {
		if e.PositionID == positionID {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt.Equal(result[j].ExecutedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].ExecutedAt.Before(result[j].ExecutedAt)
	})
	return result, nil
}
