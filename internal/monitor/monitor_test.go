package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/exits"
	"solana-exit-engine/internal/levels"
	"solana-exit-engine/internal/pricing"
	pricingstub "solana-exit-engine/internal/pricing/stub"
	"solana-exit-engine/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fillExecutor fills every sell at the requested trigger price.
type fillExecutor struct {
	price decimal.Decimal
	calls int
}

func (e *fillExecutor) Execute(_ context.Context, req domain.TradeRequest) (*domain.SwapResult, error) {
	e.calls++
	return &domain.SwapResult{
		Success:     true,
		Venue:       "stub",
		TxSignature: "sig-" + req.TokenMint,
		InAmount:    req.Amount,
		OutAmount:   req.Amount.Mul(e.price),
		Price:       e.price,
	}, nil
}

type fixture struct {
	monitor    *Monitor
	positions  *memory.PositionStore
	executions *memory.ExitExecutionStore
	prices     *pricingstub.Provider
	executor   *fillExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	strategies := memory.NewStrategyStore()
	strategy := &domain.ExitStrategy{
		StrategyID:  "default",
		StopLossPct: dec("0.5"),
		TakeProfits: []domain.TakeProfitTier{
			{Multiplier: dec("2"), SellPct: dec("50")},
			{Multiplier: dec("3"), SellPct: dec("100")},
		},
	}
	require.NoError(t, strategies.Insert(context.Background(), strategy))

	f := &fixture{
		positions:  memory.NewPositionStore(),
		executions: memory.NewExitExecutionStore(),
		prices:     &pricingstub.Provider{},
		executor:   &fillExecutor{price: dec("0.001")},
	}

	engine := exits.New(exits.Options{
		Positions:  f.positions,
		Executions: f.executions,
		Strategies: exits.NewStrategyCache(strategies, exits.DefaultStrategyTTL, nil),
		Executor:   f.executor,
	})

	f.monitor = New(Options{
		Positions: f.positions,
		Engine:    engine,
		Prices:    f.prices,
		Interval:  10 * time.Millisecond,
	})
	return f
}

func (f *fixture) addPosition(t *testing.T, id, mint string) *domain.Position {
	t.Helper()

	entry := dec("0.001")
	strategy := &domain.ExitStrategy{
		StrategyID:  "default",
		StopLossPct: dec("0.5"),
		TakeProfits: []domain.TakeProfitTier{
			{Multiplier: dec("2"), SellPct: dec("50")},
			{Multiplier: dec("3"), SellPct: dec("100")},
		},
	}
	lvls, err := levels.Calculate(entry, strategy)
	require.NoError(t, err)

	pos := &domain.Position{
		ID:              id,
		TokenMint:       mint,
		Status:          domain.PositionStatusOpen,
		EntryPrice:      entry,
		EntrySOL:        dec("1"),
		EntryAmount:     dec("1000"),
		EntryTime:       time.Now(),
		RemainingAmount: dec("1000"),
		PeakPrice:       entry,
		StrategyID:      strategy.StrategyID,
		Levels:          lvls,
	}
	require.NoError(t, f.positions.Insert(context.Background(), pos))
	return pos
}

func TestMonitor_RunCycleFiresExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos := f.addPosition(t, "pos1", "MintA")
	f.prices.SetPrice("MintA", dec("0.002"))
	f.executor.price = dec("0.002")

	require.NoError(t, f.monitor.RunCycle(ctx))

	stored, err := f.positions.GetByID(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusPartialExit, stored.Status)
	assert.True(t, stored.RemainingAmount.Equal(dec("500")))

	execs, err := f.executions.GetByPositionID(ctx, pos.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExitReasonTakeProfit, execs[0].Reason)
}

func TestMonitor_RunCycleHoldsBelowTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos := f.addPosition(t, "pos1", "MintA")
	f.prices.SetPrice("MintA", dec("0.0012"))

	require.NoError(t, f.monitor.RunCycle(ctx))

	stored, err := f.positions.GetByID(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, stored.Status)
	assert.Equal(t, 0, f.executor.calls)
}

func TestMonitor_OnePriceFetchPerMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addPosition(t, "pos1", "MintA")
	f.addPosition(t, "pos2", "MintA")
	f.addPosition(t, "pos3", "MintB")
	f.prices.SetPrice("MintA", dec("0.0012"))
	f.prices.SetPrice("MintB", dec("0.0012"))

	require.NoError(t, f.monitor.RunCycle(ctx))

	assert.Len(t, f.prices.Calls, 2, "one fetch per distinct mint")
}

func TestMonitor_PriceFailureSkipsMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unstable := f.addPosition(t, "pos1", "MintA")
	healthy := f.addPosition(t, "pos2", "MintB")
	f.prices.Errs = map[string]error{"MintA": pricing.ErrPriceUnavailable}
	f.prices.SetPrice("MintB", dec("0.002"))
	f.executor.price = dec("0.002")

	require.NoError(t, f.monitor.RunCycle(ctx))

	// The failed mint is untouched, the healthy one still fires.
	storedA, err := f.positions.GetByID(ctx, unstable.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, storedA.Status)

	storedB, err := f.positions.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusPartialExit, storedB.Status)
}

func TestMonitor_EmptyCycle(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.monitor.RunCycle(context.Background()))
	assert.Empty(t, f.prices.Calls)
}

func TestMonitor_CheckPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos := f.addPosition(t, "pos1", "MintA")
	f.prices.SetPrice("MintA", dec("0.002"))
	f.executor.price = dec("0.002")

	exec, err := f.monitor.CheckPosition(ctx, pos.ID)
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, domain.ExitReasonTakeProfit, exec.Reason)

	// Second check at the same price must not re-fire the tier.
	exec, err = f.monitor.CheckPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Nil(t, exec)
}

func TestMonitor_CheckPositionUnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.monitor.CheckPosition(context.Background(), "missing")
	require.Error(t, err)
}

func TestMonitor_StartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos := f.addPosition(t, "pos1", "MintA")
	f.prices.SetPrice("MintA", dec("0.002"))
	f.executor.price = dec("0.002")

	require.NoError(t, f.monitor.Start(ctx))
	require.Error(t, f.monitor.Start(ctx), "double start rejected")

	// The immediate first tick should pick the position up quickly.
	require.Eventually(t, func() bool {
		stored, err := f.positions.GetByID(ctx, pos.ID)
		return err == nil && stored.Status == domain.PositionStatusPartialExit
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.monitor.Stop())
	require.ErrorIs(t, f.monitor.Stop(), ErrNotRunning)
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.monitor.Stop(), ErrNotRunning)
}

func TestMonitor_ContextCancellationStopsCycle(t *testing.T) {
	f := newFixture(t)

	f.addPosition(t, "pos1", "MintA")
	f.prices.SetPrice("MintA", dec("0.0012"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.monitor.RunCycle(ctx)
	require.True(t, err == nil || errors.Is(err, context.Canceled))
}
