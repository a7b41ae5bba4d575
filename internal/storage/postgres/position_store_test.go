package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/storage"
	"solana-exit-engine/internal/storage/postgres"
)

func fixturePosition(mint string, entryTime time.Time) *domain.Position {
	entry := decimal.RequireFromString("0.000125")
	return &domain.Position{
		ID:              uuid.NewString(),
		SignalID:        uuid.NewString(),
		TokenMint:       mint,
		TokenSymbol:     "TKN",
		Status:          domain.PositionStatusOpen,
		EntryPrice:      entry,
		EntrySOL:        decimal.RequireFromString("2.5"),
		EntryAmount:     decimal.RequireFromString("20000"),
		EntryTime:       entryTime,
		TokenDecimals:   6,
		RemainingAmount: decimal.RequireFromString("20000"),
		RealizedPnLSOL:  decimal.Zero,
		PeakPrice:       entry,
		LastCheckedAt:   entryTime,
		StrategyID:      "default",
		ConvictionTier:  "high",
		MoonbagPct:      decimal.RequireFromString("15"),
		Levels: domain.PositionLevels{
			StopLossPrice: entry.Mul(decimal.RequireFromString("0.5")),
			TakeProfits: []domain.TakeProfitLevel{
				{TriggerPrice: entry.Mul(decimal.NewFromInt(2)), SellPct: decimal.RequireFromString("50")},
				{TriggerPrice: entry.Mul(decimal.NewFromInt(3)), SellPct: decimal.RequireFromString("100")},
			},
		},
		CreatedAt: entryTime,
		UpdatedAt: entryTime,
	}
}

func TestPositionStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPositionStore(pool)
	ctx := context.Background()

	p := fixturePosition("MintA", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)

	require.Equal(t, p.TokenMint, got.TokenMint)
	require.Equal(t, domain.PositionStatusOpen, got.Status)
	require.True(t, got.EntryPrice.Equal(p.EntryPrice), "entry price: got %s", got.EntryPrice)
	require.True(t, got.RemainingAmount.Equal(p.RemainingAmount))
	require.True(t, got.MoonbagPct.Equal(p.MoonbagPct))
	require.Len(t, got.Levels.TakeProfits, 2)
	require.True(t, got.Levels.StopLossPrice.Equal(p.Levels.StopLossPrice))
	require.Nil(t, got.ExitPrice)
	require.Nil(t, got.ExitTime)
}

func TestPositionStore_DuplicateKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPositionStore(pool)
	ctx := context.Background()

	p := fixturePosition("MintA", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, p))
	require.ErrorIs(t, store.Insert(ctx, p), storage.ErrDuplicateKey)
}

func TestPositionStore_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPositionStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, store.Update(ctx, fixturePosition("MintA", time.Now().UTC())), storage.ErrNotFound)
}

func TestPositionStore_UpdateAndClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPositionStore(pool)
	ctx := context.Background()

	p := fixturePosition("MintA", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, store.Insert(ctx, p))

	now := time.Now().UTC().Truncate(time.Millisecond)
	triggered := now
	p.Status = domain.PositionStatusClosed
	p.RemainingAmount = decimal.Zero
	p.RealizedPnLSOL = decimal.RequireFromString("2.5")
	p.Levels.TakeProfits[0].Triggered = true
	p.Levels.TakeProfits[0].TriggeredAt = &triggered
	p.Levels.TakeProfits[0].TxSignature = "sig1"
	p.Levels.TakeProfits[1].Triggered = true
	p.Levels.TakeProfits[1].TriggeredAt = &triggered
	p.Levels.TakeProfits[1].TxSignature = "sig2"
	p.ExitReason = domain.ExitReasonTakeProfit
	p.ExitTime = &now
	exitPrice := decimal.RequireFromString("0.000375")
	p.ExitPrice = &exitPrice
	p.ExitSignatures = []string{"sig1", "sig2"}
	p.ExecutionIDs = []string{uuid.NewString(), uuid.NewString()}
	p.UpdatedAt = now

	require.NoError(t, store.Update(ctx, p))

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PositionStatusClosed, got.Status)
	require.True(t, got.RemainingAmount.IsZero())
	require.True(t, got.RealizedPnLSOL.Equal(p.RealizedPnLSOL))
	require.True(t, got.Levels.TakeProfits[0].Triggered)
	require.Equal(t, "sig1", got.Levels.TakeProfits[0].TxSignature)
	require.NotNil(t, got.ExitTime)
	require.NotNil(t, got.ExitPrice)
	require.True(t, got.ExitPrice.Equal(exitPrice))
	require.Equal(t, []string{"sig1", "sig2"}, got.ExitSignatures)
	require.Len(t, got.ExecutionIDs, 2)
}

func TestPositionStore_GetOpenAndGetByMint(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPositionStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	first := fixturePosition("MintA", base)
	second := fixturePosition("MintA", base.Add(time.Minute))
	other := fixturePosition("MintB", base.Add(2*time.Minute))
	closed := fixturePosition("MintA", base.Add(3*time.Minute))
	closed.Status = domain.PositionStatusClosed

	for _, p := range []*domain.Position{second, first, other, closed} {
		require.NoError(t, store.Insert(ctx, p))
	}

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	require.Equal(t, first.ID, open[0].ID, "open positions ordered by entry time")
	require.Equal(t, second.ID, open[1].ID)

	byMint, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	require.Equal(t, first.ID, byMint[0].ID)
	require.Equal(t, second.ID, byMint[1].ID)
}

func TestPositionStore_MoonbagRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPositionStore(pool)
	ctx := context.Background()

	p := fixturePosition("MintA", time.Now().UTC().Truncate(time.Millisecond))
	moonbagStop := p.EntryPrice.Mul(decimal.RequireFromString("0.8"))
	trailingActivation := p.EntryPrice.Mul(decimal.RequireFromString("1.5"))
	trailingStop := p.EntryPrice.Mul(decimal.RequireFromString("1.7"))
	p.Levels.MoonbagStopPrice = &moonbagStop
	p.Levels.TrailingActivationPrice = &trailingActivation
	p.Levels.TrailingStopPrice = &trailingStop
	p.Status = domain.PositionStatusMoonbag
	p.IsMoonbag = true

	require.NoError(t, store.Insert(ctx, p))

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.IsMoonbag)
	require.NotNil(t, got.Levels.MoonbagStopPrice)
	require.True(t, got.Levels.MoonbagStopPrice.Equal(moonbagStop))
	require.NotNil(t, got.Levels.TrailingStopPrice)
	require.True(t, got.Levels.TrailingStopPrice.Equal(trailingStop))
}
