package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// ExitExecutionStore implements storage.ExitExecutionStore using PostgreSQL.
type ExitExecutionStore struct {
	pool *Pool
}

// NewExitExecutionStore creates a new ExitExecutionStore.
func NewExitExecutionStore(pool *Pool) *ExitExecutionStore {
	return &ExitExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExitExecutionStore = (*ExitExecutionStore)(nil)

// Insert adds a new execution. Returns ErrDuplicateKey if the id exists.
func (s *ExitExecutionStore) Insert(ctx context.Context, e *domain.ExitExecution) error {
	if e == nil || e.ID == "" || e.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO exit_executions (
			id, position_id, reason, level_index,
			sell_pct, tokens_sold, proceeds_sol, price,
			tx_signature, realized_pnl_sol, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.PositionID, e.Reason, e.LevelIndex,
		e.SellPct.String(), e.TokensSold.String(), e.ProceedsSOL.String(), e.Price.String(),
		e.TxSignature, e.RealizedPnLSOL.String(), e.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert exit execution: %w", err)
	}
	return nil
}

// GetByPositionID retrieves all executions for a position, ordered by
// execution time ASC.
func (s *ExitExecutionStore) GetByPositionID(ctx context.Context, positionID string) ([]*domain.ExitExecution, error) {
	if positionID == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, position_id, reason, level_index,
			sell_pct::text, tokens_sold::text, proceeds_sol::text, price::text,
			tx_signature, realized_pnl_sol::text, executed_at
		FROM exit_executions
		WHERE position_id = $1
		ORDER BY executed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("get executions by position id: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

func scanExecutions(rows pgx.Rows) ([]*domain.ExitExecution, error) {
	var executions []*domain.ExitExecution
	for rows.Next() {
		var (
			e        domain.ExitExecution
			sellPct  string
			sold     string
			proceeds string
			price    string
			pnl      string
		)
		err := rows.Scan(
			&e.ID, &e.PositionID, &e.Reason, &e.LevelIndex,
			&sellPct, &sold, &proceeds, &price,
			&e.TxSignature, &pnl, &e.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan exit execution: %w", err)
		}
		if e.SellPct, err = decimal.NewFromString(sellPct); err != nil {
			return nil, fmt.Errorf("parse sell_pct: %w", err)
		}
		if e.TokensSold, err = decimal.NewFromString(sold); err != nil {
			return nil, fmt.Errorf("parse tokens_sold: %w", err)
		}
		if e.ProceedsSOL, err = decimal.NewFromString(proceeds); err != nil {
			return nil, fmt.Errorf("parse proceeds_sol: %w", err)
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if e.RealizedPnLSOL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("parse realized_pnl_sol: %w", err)
		}
		executions = append(executions, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exit executions: %w", err)
	}
	return executions, nil
}
