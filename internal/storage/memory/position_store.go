package memory

import (
	"context"
	"sort"
	"sync"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if the id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[p.ID] = p.Clone()
	return nil
}

// GetByID retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, id string) (*domain.Position, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// GetOpen retrieves all non-terminal positions, ordered by entry time ASC.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if !p.IsTerminal() {
			result = append(result, p.Clone())
		}
	}
	sortByEntryTime(result)
	return result, nil
}

// GetByMint retrieves all non-terminal positions holding the given mint.
func (s *PositionStore) GetByMint(_ context.Context, mint string) ([]*domain.Position, error) {
	if mint == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.TokenMint == mint && !p.IsTerminal() {
			result = append(result, p.Clone())
		}
	}
	sortByEntryTime(result)
	return result, nil
}

// Update replaces the stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; !exists {
		return storage.ErrNotFound
	}
	s.data[p.ID] = p.Clone()
	return nil
}

func sortByEntryTime(positions []*domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].EntryTime.Equal(positions[j].EntryTime) {
			return positions[i].ID < positions[j].ID
		}
		return positions[i].EntryTime.Before(positions[j].EntryTime)
	})
}
