package memory

import (
	"context"
	"sort"
	"sync"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// StrategyStore is an in-memory implementation of storage.StrategyStore.
type StrategyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExitStrategy // keyed by strategy id
}

// NewStrategyStore creates a new in-memory strategy store.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{
		data: make(map[string]*domain.ExitStrategy),
	}
}

var _ storage.StrategyStore = (*StrategyStore)(nil)

// Insert adds a new strategy. Returns ErrDuplicateKey if the id exists.
func (s *StrategyStore) Insert(_ context.Context, strategy *domain.ExitStrategy) error {
	if strategy == nil || strategy.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[strategy.StrategyID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[strategy.StrategyID] = strategy.Clone()
	return nil
}

// GetByID retrieves a strategy by id. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(_ context.Context, strategyID string) (*domain.ExitStrategy, error) {
	if strategyID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	strategy, exists := s.data[strategyID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return strategy.Clone(), nil
}

// List retrieves all strategies, ordered by id ASC.
func (s *StrategyStore) List(_ context.Context) ([]*domain.ExitStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ExitStrategy, 0, len(s.data))
	for _, strategy := range s.data {
		result = append(result, strategy.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StrategyID < result[j].StrategyID
	})
	return result, nil
}
