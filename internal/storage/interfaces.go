package storage

import (
	"context"

	"solana-exit-engine/internal/domain"
)

// PositionStore provides access to positions storage.
// Updates are atomic per call; no cross-position transactions.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// GetOpen retrieves all non-terminal positions, ordered by entry time ASC.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetByMint retrieves all non-terminal positions holding the given mint.
	GetByMint(ctx context.Context, mint string) ([]*domain.Position, error)

	// Update replaces the stored position. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error
}

// ExitExecutionStore provides access to exit_executions storage.
// Records are append-only and never mutated.
type ExitExecutionStore interface {
	// Insert adds a new execution. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, e *domain.ExitExecution) error

	// GetByPositionID retrieves all executions for a position, ordered by
	// execution time ASC.
	GetByPositionID(ctx context.Context, positionID string) ([]*domain.ExitExecution, error)
}

// DecisionAuditStore provides access to the decision_audit timeseries.
// Rows are append-only; writes are best effort and must not block exits.
type DecisionAuditStore interface {
	// InsertBulk adds multiple audit rows.
	InsertBulk(ctx context.Context, rows []*domain.DecisionAudit) error

	// GetByPositionID retrieves all audit rows for a position, ordered by
	// check time ASC.
	GetByPositionID(ctx context.Context, positionID string) ([]*domain.DecisionAudit, error)
}

// StrategyStore provides access to exit_strategies storage.
type StrategyStore interface {
	// Insert adds a new strategy. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, s *domain.ExitStrategy) error

	// GetByID retrieves a strategy by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, strategyID string) (*domain.ExitStrategy, error)

	// List retrieves all strategies, ordered by id ASC.
	List(ctx context.Context) ([]*domain.ExitStrategy, error)
}
