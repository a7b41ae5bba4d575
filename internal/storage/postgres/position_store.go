package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// Level triggers live in a jsonb column; monetary values are NUMERIC and
// travel through the driver as text to keep exact decimal semantics.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	id, signal_id, token_mint, token_symbol, status,
	entry_price::text, entry_sol::text, entry_amount::text, entry_time, token_decimals,
	remaining_amount::text, realized_pnl_sol::text, peak_price::text, last_checked_at,
	strategy_id, conviction_tier, is_moonbag, moonbag_pct::text,
	levels, exit_reason, exit_time, exit_price::text,
	exit_signatures, execution_ids, created_at, updated_at
`

// Insert adds a new position. Returns ErrDuplicateKey if the id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	levels, err := json.Marshal(p.Levels)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}

	query := `
		INSERT INTO positions (
			id, signal_id, token_mint, token_symbol, status,
			entry_price, entry_sol, entry_amount, entry_time, token_decimals,
			remaining_amount, realized_pnl_sol, peak_price, last_checked_at,
			strategy_id, conviction_tier, is_moonbag, moonbag_pct,
			levels, exit_reason, exit_time, exit_price,
			exit_signatures, execution_ids, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25, $26
		)
	`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.SignalID, p.TokenMint, p.TokenSymbol, string(p.Status),
		p.EntryPrice.String(), p.EntrySOL.String(), p.EntryAmount.String(), p.EntryTime, p.TokenDecimals,
		p.RemainingAmount.String(), p.RealizedPnLSOL.String(), p.PeakPrice.String(), p.LastCheckedAt,
		p.StrategyID, p.ConvictionTier, p.IsMoonbag, p.MoonbagPct.String(),
		levels, p.ExitReason, p.ExitTime, decimalPtrToText(p.ExitPrice),
		p.ExitSignatures, p.ExecutionIDs, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// GetByID retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all non-terminal positions, ordered by entry time ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status != 'CLOSED'
		ORDER BY entry_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetByMint retrieves all non-terminal positions holding the given mint.
func (s *PositionStore) GetByMint(ctx context.Context, mint string) ([]*domain.Position, error) {
	if mint == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE token_mint = $1 AND status != 'CLOSED'
		ORDER BY entry_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get positions by mint: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// Update replaces the stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	levels, err := json.Marshal(p.Levels)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}

	query := `
		UPDATE positions SET
			status = $2,
			remaining_amount = $3,
			realized_pnl_sol = $4,
			peak_price = $5,
			last_checked_at = $6,
			is_moonbag = $7,
			moonbag_pct = $8,
			levels = $9,
			exit_reason = $10,
			exit_time = $11,
			exit_price = $12,
			exit_signatures = $13,
			execution_ids = $14,
			updated_at = $15
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.ID,
		string(p.Status),
		p.RemainingAmount.String(),
		p.RealizedPnLSOL.String(),
		p.PeakPrice.String(),
		p.LastCheckedAt,
		p.IsMoonbag,
		p.MoonbagPct.String(),
		levels,
		p.ExitReason,
		p.ExitTime,
		decimalPtrToText(p.ExitPrice),
		p.ExitSignatures,
		p.ExecutionIDs,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p          domain.Position
		status     string
		entryPrice string
		entrySOL   string
		entryAmt   string
		remaining  string
		pnl        string
		peak       string
		moonbagPct string
		levels     []byte
		exitTime   *time.Time
		exitPrice  *string
	)

	err := row.Scan(
		&p.ID, &p.SignalID, &p.TokenMint, &p.TokenSymbol, &status,
		&entryPrice, &entrySOL, &entryAmt, &p.EntryTime, &p.TokenDecimals,
		&remaining, &pnl, &peak, &p.LastCheckedAt,
		&p.StrategyID, &p.ConvictionTier, &p.IsMoonbag, &moonbagPct,
		&levels, &p.ExitReason, &exitTime, &exitPrice,
		&p.ExitSignatures, &p.ExecutionIDs, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(status)
	if p.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("parse entry_price: %w", err)
	}
	if p.EntrySOL, err = decimal.NewFromString(entrySOL); err != nil {
		return nil, fmt.Errorf("parse entry_sol: %w", err)
	}
	if p.EntryAmount, err = decimal.NewFromString(entryAmt); err != nil {
		return nil, fmt.Errorf("parse entry_amount: %w", err)
	}
	if p.RemainingAmount, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("parse remaining_amount: %w", err)
	}
	if p.RealizedPnLSOL, err = decimal.NewFromString(pnl); err != nil {
		return nil, fmt.Errorf("parse realized_pnl_sol: %w", err)
	}
	if p.PeakPrice, err = decimal.NewFromString(peak); err != nil {
		return nil, fmt.Errorf("parse peak_price: %w", err)
	}
	if p.MoonbagPct, err = decimal.NewFromString(moonbagPct); err != nil {
		return nil, fmt.Errorf("parse moonbag_pct: %w", err)
	}
	if err := json.Unmarshal(levels, &p.Levels); err != nil {
		return nil, fmt.Errorf("unmarshal levels: %w", err)
	}
	p.ExitTime = exitTime
	if exitPrice != nil {
		v, err := decimal.NewFromString(*exitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse exit_price: %w", err)
		}
		p.ExitPrice = &v
	}
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func decimalPtrToText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
