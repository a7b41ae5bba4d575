package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage/clickhouse"
)

func TestDecisionAuditStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewDecisionAuditStore(conn)
	ctx := context.Background()

	positionID := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	trailing := decimal.RequireFromString("0.0017")

	rows := []*domain.DecisionAudit{
		{
			PositionID: positionID,
			TokenMint:  "MintA",
			CheckedAt:  base,
			Price:      decimal.RequireFromString("0.001"),
			PeakPrice:  decimal.RequireFromString("0.001"),
			Decision:   domain.DecisionHold,
		},
		{
			PositionID:   positionID,
			TokenMint:    "MintA",
			CheckedAt:    base.Add(5 * time.Second),
			Price:        decimal.RequireFromString("0.002"),
			PeakPrice:    decimal.RequireFromString("0.002"),
			TrailingStop: &trailing,
			Decision:     domain.ExitReasonTakeProfit,
			SellPct:      decimal.RequireFromString("50"),
			TxSignature:  "sig1",
		},
	}

	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByPositionID(ctx, positionID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, domain.DecisionHold, got[0].Decision)
	require.Nil(t, got[0].TrailingStop)
	require.Empty(t, got[0].TxSignature)

	require.Equal(t, domain.ExitReasonTakeProfit, got[1].Decision)
	require.Equal(t, "sig1", got[1].TxSignature)
	require.NotNil(t, got[1].TrailingStop)
	require.InDelta(t, 0.0017, got[1].TrailingStop.InexactFloat64(), 1e-9)
	require.InDelta(t, 50, got[1].SellPct.InexactFloat64(), 1e-9)
	require.True(t, got[0].CheckedAt.Before(got[1].CheckedAt), "rows ordered by check time")
}

func TestDecisionAuditStore_EmptyInsert(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewDecisionAuditStore(conn)

	require.NoError(t, store.InsertBulk(context.Background(), nil))
}

func TestDecisionAuditStore_IsolatedByPosition(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewDecisionAuditStore(conn)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	a := uuid.NewString()
	b := uuid.NewString()

	require.NoError(t, store.InsertBulk(ctx, []*domain.DecisionAudit{
		{PositionID: a, TokenMint: "MintA", CheckedAt: now, Price: decimal.New(1, -3), PeakPrice: decimal.New(1, -3), Decision: domain.DecisionHold},
		{PositionID: b, TokenMint: "MintB", CheckedAt: now, Price: decimal.New(2, -3), PeakPrice: decimal.New(2, -3), Decision: domain.DecisionHold},
	}))

	got, err := store.GetByPositionID(ctx, a)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "MintA", got[0].TokenMint)
}
