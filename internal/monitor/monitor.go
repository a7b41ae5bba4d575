// Package monitor runs the periodic price-check loop over open positions.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/exits"
	"solana-exit-engine/internal/observability"
	"solana-exit-engine/internal/pricing"
	"solana-exit-engine/internal/storage"
)

// Default configuration values.
const (
	DefaultInterval       = 5 * time.Second
	DefaultMaxConcurrency = 8
)

// ErrNotRunning is returned by Stop when the monitor was never started.
var ErrNotRunning = errors.New("monitor: not running")

// Monitor periodically loads open positions, fetches a price per distinct
// mint, and feeds each position through the exit engine. Positions sharing
// a mint are processed sequentially against the same price sample; distinct
// mints run concurrently up to the configured limit.
type Monitor struct {
	positions storage.PositionStore
	engine    *exits.Engine
	prices    pricing.Provider
	logger    *zap.Logger

	interval       time.Duration
	maxConcurrency int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// tickBusy guards against overlapping cycles: a tick firing while the
	// previous cycle is in flight is skipped, not queued.
	tickBusy sync.Mutex
}

// Options for creating a Monitor.
type Options struct {
	Positions storage.PositionStore
	Engine    *exits.Engine
	Prices    pricing.Provider
	Logger    *zap.Logger

	Interval       time.Duration // defaults to DefaultInterval
	MaxConcurrency int           // distinct mints processed in parallel, defaults to DefaultMaxConcurrency
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Monitor{
		positions:      opts.Positions,
		engine:         opts.Engine,
		prices:         opts.Prices,
		logger:         logger,
		interval:       interval,
		maxConcurrency: maxConcurrency,
	}
}

// Start launches the monitoring loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor: already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(loopCtx)

	m.logger.Info("monitor started",
		zap.Duration("interval", m.interval),
		zap.Int("max_concurrency", m.maxConcurrency))
	return nil
}

// Stop halts the loop and waits for the in-flight cycle to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("monitor stopped")
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Run one cycle immediately rather than waiting a full interval.
	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs a single cycle unless the previous one is still in flight, in
// which case it is skipped entirely.
func (m *Monitor) tick(ctx context.Context) {
	if !m.tickBusy.TryLock() {
		m.logger.Warn("previous cycle still running, skipping tick")
		return
	}
	defer m.tickBusy.Unlock()

	if err := m.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("monitor cycle failed", zap.Error(err))
	}
}

// RunCycle performs one full evaluation pass over all open positions.
func (m *Monitor) RunCycle(ctx context.Context) error {
	start := time.Now()

	open, err := m.positions.GetOpen(ctx)
	if err != nil {
		observability.RecordCycle("error", time.Since(start).Seconds(), 0, 0)
		return fmt.Errorf("load open positions: %w", err)
	}
	if len(open) == 0 {
		observability.RecordCycle("ok", time.Since(start).Seconds(), 0, 0)
		observability.RecordCycleSuccess(float64(time.Now().Unix()))
		return nil
	}

	byMint := groupByMint(open)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrency)

	for mint, group := range byMint {
		g.Go(func() error {
			m.processMint(gctx, mint, group)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordCycle("error", time.Since(start).Seconds(), len(open), len(byMint))
		return err
	}

	observability.RecordCycle("ok", time.Since(start).Seconds(), len(open), len(byMint))
	observability.RecordCycleSuccess(float64(time.Now().Unix()))

	m.logger.Debug("cycle complete",
		zap.Int("positions", len(open)),
		zap.Int("mints", len(byMint)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// processMint fetches one price sample and evaluates every position on the
// mint against it, sequentially. A price failure skips the whole group for
// this cycle; positions are re-evaluated next tick.
func (m *Monitor) processMint(ctx context.Context, mint string, group []*domain.Position) {
	price, err := m.prices.FetchPrice(ctx, mint)
	observability.RecordPriceFetch(err)
	if err != nil {
		m.logger.Warn("price fetch failed, skipping mint this cycle",
			zap.String("mint", mint),
			zap.Int("positions", len(group)),
			zap.Error(err))
		return
	}

	for _, pos := range group {
		if ctx.Err() != nil {
			return
		}
		m.evaluate(ctx, pos, price)
	}
}

func (m *Monitor) evaluate(ctx context.Context, pos *domain.Position, price decimal.Decimal) {
	exec, err := m.engine.ProcessPosition(ctx, pos, price)
	if err != nil {
		observability.RecordEvaluationError()
		m.logger.Error("position evaluation failed",
			zap.String("position_id", pos.ID),
			zap.String("mint", pos.TokenMint),
			zap.Error(err))
		return
	}
	if exec != nil {
		observability.RecordExit(exec.Reason, float64(time.Now().Unix()))
		m.logger.Info("exit executed",
			zap.String("position_id", pos.ID),
			zap.String("reason", exec.Reason),
			zap.String("tokens_sold", exec.TokensSold.String()),
			zap.String("proceeds_sol", exec.ProceedsSOL.String()),
			zap.String("signature", exec.TxSignature))
	}
}

// CheckPosition evaluates a single position on demand, outside the timer
// loop. It shares the engine's per-position serialization with the loop, so
// a concurrent tick cannot double-exit the position.
func (m *Monitor) CheckPosition(ctx context.Context, positionID string) (*domain.ExitExecution, error) {
	pos, err := m.positions.GetByID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w", positionID, err)
	}

	price, err := m.prices.FetchPrice(ctx, pos.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("fetch price for %s: %w", pos.TokenMint, err)
	}

	return m.engine.ProcessPosition(ctx, pos, price)
}

func groupByMint(positions []*domain.Position) map[string][]*domain.Position {
	byMint := make(map[string][]*domain.Position)
	for _, pos := range positions {
		byMint[pos.TokenMint] = append(byMint[pos.TokenMint], pos)
	}
	return byMint
}
