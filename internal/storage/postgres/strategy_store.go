package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// StrategyStore implements storage.StrategyStore using PostgreSQL.
// Tier, trailing, and moonbag configuration live in jsonb columns.
type StrategyStore struct {
	pool *Pool
}

// NewStrategyStore creates a new StrategyStore.
func NewStrategyStore(pool *Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// Insert adds a new strategy. Returns ErrDuplicateKey if the id exists.
func (s *StrategyStore) Insert(ctx context.Context, strategy *domain.ExitStrategy) error {
	if strategy == nil || strategy.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	takeProfits, err := json.Marshal(strategy.TakeProfits)
	if err != nil {
		return fmt.Errorf("marshal take profits: %w", err)
	}
	trailing, err := marshalNullable(strategy.Trailing)
	if err != nil {
		return fmt.Errorf("marshal trailing: %w", err)
	}
	moonbag, err := marshalNullable(strategy.Moonbag)
	if err != nil {
		return fmt.Errorf("marshal moonbag: %w", err)
	}

	query := `
		INSERT INTO exit_strategies (
			strategy_id, name, description, stop_loss_pct, take_profits, trailing, moonbag
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		strategy.StrategyID, strategy.Name, strategy.Description,
		strategy.StopLossPct.String(), takeProfits, trailing, moonbag,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert strategy: %w", err)
	}
	return nil
}

// GetByID retrieves a strategy by id. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(ctx context.Context, strategyID string) (*domain.ExitStrategy, error) {
	if strategyID == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT strategy_id, name, description, stop_loss_pct::text, take_profits, trailing, moonbag
		FROM exit_strategies
		WHERE strategy_id = $1
	`

	row := s.pool.QueryRow(ctx, query, strategyID)
	strategy, err := scanStrategy(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get strategy by id: %w", err)
	}
	return strategy, nil
}

// List retrieves all strategies, ordered by id ASC.
func (s *StrategyStore) List(ctx context.Context) ([]*domain.ExitStrategy, error) {
	query := `
		SELECT strategy_id, name, description, stop_loss_pct::text, take_profits, trailing, moonbag
		FROM exit_strategies
		ORDER BY strategy_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []*domain.ExitStrategy
	for rows.Next() {
		strategy, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		strategies = append(strategies, strategy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategies: %w", err)
	}
	return strategies, nil
}

func scanStrategy(row pgx.Row) (*domain.ExitStrategy, error) {
	var (
		s           domain.ExitStrategy
		stopLossPct string
		takeProfits []byte
		trailing    []byte
		moonbag     []byte
	)

	err := row.Scan(&s.StrategyID, &s.Name, &s.Description, &stopLossPct, &takeProfits, &trailing, &moonbag)
	if err != nil {
		return nil, err
	}

	if s.StopLossPct, err = decimal.NewFromString(stopLossPct); err != nil {
		return nil, fmt.Errorf("parse stop_loss_pct: %w", err)
	}
	if err := json.Unmarshal(takeProfits, &s.TakeProfits); err != nil {
		return nil, fmt.Errorf("unmarshal take profits: %w", err)
	}
	if len(trailing) > 0 {
		if err := json.Unmarshal(trailing, &s.Trailing); err != nil {
			return nil, fmt.Errorf("unmarshal trailing: %w", err)
		}
	}
	if len(moonbag) > 0 {
		if err := json.Unmarshal(moonbag, &s.Moonbag); err != nil {
			return nil, fmt.Errorf("unmarshal moonbag: %w", err)
		}
	}
	return &s, nil
}

// marshalNullable marshals v, returning nil for a nil pointer so the column
// stays NULL rather than holding the JSON literal null.
func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *domain.TrailingConfig:
		if t == nil {
			return nil, nil
		}
	case *domain.MoonbagConfig:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
