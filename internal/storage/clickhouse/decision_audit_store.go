package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
)

// DecisionAuditStore implements storage.DecisionAuditStore using ClickHouse.
// Prices are stored as Float64; the audit trail is analytical, exact decimal
// state lives in PostgreSQL.
type DecisionAuditStore struct {
	conn *Conn
}

// NewDecisionAuditStore creates a new DecisionAuditStore.
func NewDecisionAuditStore(conn *Conn) *DecisionAuditStore {
	return &DecisionAuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionAuditStore = (*DecisionAuditStore)(nil)

// InsertBulk adds multiple audit rows in one batch.
func (s *DecisionAuditStore) InsertBulk(ctx context.Context, rows []*domain.DecisionAudit) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decision_audit (
			position_id, token_mint, checked_at, price, peak_price, trailing_stop, decision, sell_pct, tx_signature
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		trailing := 0.0
		if r.TrailingStop != nil {
			trailing = r.TrailingStop.InexactFloat64()
		}
		err = batch.Append(
			r.PositionID, r.TokenMint, r.CheckedAt,
			r.Price.InexactFloat64(), r.PeakPrice.InexactFloat64(), trailing,
			r.Decision, r.SellPct.InexactFloat64(), r.TxSignature,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPositionID retrieves all audit rows for a position, ordered by check
// time ASC.
func (s *DecisionAuditStore) GetByPositionID(ctx context.Context, positionID string) ([]*domain.DecisionAudit, error) {
	query := `
		SELECT position_id, token_mint, checked_at, price, peak_price, trailing_stop, decision, sell_pct, tx_signature
		FROM decision_audit
		WHERE position_id = ?
		ORDER BY checked_at ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query by position id: %w", err)
	}
	defer rows.Close()

	return scanDecisionAudits(rows)
}

func scanDecisionAudits(rows driver.Rows) ([]*domain.DecisionAudit, error) {
	var audits []*domain.DecisionAudit

	for rows.Next() {
		var (
			a         domain.DecisionAudit
			checkedAt time.Time
			price     float64
			peak      float64
			trailing  float64
			sellPct   float64
		)
		err := rows.Scan(
			&a.PositionID, &a.TokenMint, &checkedAt,
			&price, &peak, &trailing,
			&a.Decision, &sellPct, &a.TxSignature,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		a.CheckedAt = checkedAt
		a.Price = decimal.NewFromFloat(price)
		a.PeakPrice = decimal.NewFromFloat(peak)
		if trailing > 0 {
			v := decimal.NewFromFloat(trailing)
			a.TrailingStop = &v
		}
		a.SellPct = decimal.NewFromFloat(sellPct)
		audits = append(audits, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return audits, nil
}
