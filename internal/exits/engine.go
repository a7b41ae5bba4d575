// Package exits owns the position lifecycle: it decides when a position
// exits, executes the sell through the order executor, and is the only
// writer of position state.
package exits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/levels"
	"solana-exit-engine/internal/observability"
	"solana-exit-engine/internal/storage"
)

// Engine errors.
var (
	ErrPositionTerminal = errors.New("position already closed")
	ErrNoStrategy       = errors.New("position has no exit strategy")
	ErrExitFailed       = errors.New("exit execution failed")
)

// StrategyProvider resolves exit strategies by id.
type StrategyProvider interface {
	GetStrategy(ctx context.Context, strategyID string) (*domain.ExitStrategy, error)
}

// TradeExecutor is the slice of the order executor the engine needs.
type TradeExecutor interface {
	Execute(ctx context.Context, req domain.TradeRequest) (*domain.SwapResult, error)
}

// Engine evaluates and executes position exits. All mutation of a position
// goes through the engine, serialized per position id.
type Engine struct {
	positions  storage.PositionStore
	executions storage.ExitExecutionStore
	strategies StrategyProvider
	executor   TradeExecutor
	audits     storage.DecisionAuditStore
	logger     *zap.Logger
	now        func() time.Time

	locks keyedMutex
}

// Options for creating an Engine.
type Options struct {
	Positions  storage.PositionStore
	Executions storage.ExitExecutionStore
	Strategies StrategyProvider
	Executor   TradeExecutor
	Audits     storage.DecisionAuditStore // optional evaluation audit trail
	Logger     *zap.Logger
	Now        func() time.Time // injected clock, defaults to time.Now
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		positions:  opts.Positions,
		executions: opts.Executions,
		strategies: opts.Strategies,
		executor:   opts.Executor,
		audits:     opts.Audits,
		logger:     logger,
		now:        now,
	}
}

// ProcessPosition runs one evaluation cycle for a position at the given
// price: peak update, trailing recalculation, condition check, and exit
// execution when a condition fired. At most one exit executes per position
// at any instant; concurrent calls for the same id serialize here.
func (e *Engine) ProcessPosition(ctx context.Context, position *domain.Position, currentPrice decimal.Decimal) (*domain.ExitExecution, error) {
	unlock := e.locks.lock(position.ID)
	defer unlock()

	// The caller may have loaded the position before we got the lock and
	// another exit settled in between. Reload so triggers fire on current
	// state, never on a stale copy.
	if fresh, err := e.positions.GetByID(ctx, position.ID); err == nil {
		*position = *fresh
	} else if !errors.Is(err, storage.ErrNotFound) {
		e.logger.Warn("position refresh failed, evaluating caller copy",
			zap.String("position", position.ID), zap.Error(err))
	}

	if position.IsTerminal() {
		return nil, ErrPositionTerminal
	}

	strategy, err := e.strategies.GetStrategy(ctx, position.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", position.StrategyID, err)
	}

	// Peak must be current before trailing recalculation.
	if currentPrice.GreaterThan(position.PeakPrice) {
		position.PeakPrice = currentPrice
	}
	position.Levels = levels.RecalculateTrailingStop(position.Levels, currentPrice, strategy)
	position.LastCheckedAt = e.now()

	// Persist level/peak movement even without an exit; failure here is
	// tolerable, the next cycle recomputes from price anyway.
	if err := e.positions.Update(ctx, position); err != nil {
		e.logger.Warn("persist level update failed",
			zap.String("position", position.ID), zap.Error(err))
	}

	decision := CheckExitConditions(position, currentPrice, strategy)
	if decision == nil {
		observability.RecordDecision(domain.DecisionHold)
		e.recordAudit(ctx, position, currentPrice, domain.DecisionHold, decimal.Zero, "")
		return nil, nil
	}
	observability.RecordDecision(decision.Reason)

	execution, err := e.ExecuteExit(ctx, position, decision, currentPrice, strategy)
	if err != nil {
		return nil, err
	}
	signature := ""
	if execution != nil {
		signature = execution.TxSignature
	}
	e.recordAudit(ctx, position, currentPrice, decision.Reason, decision.SellPct, signature)
	return execution, nil
}

// recordAudit writes one evaluation row to the audit trail. Best effort: a
// failed write is logged and never affects the position.
func (e *Engine) recordAudit(ctx context.Context, position *domain.Position, currentPrice decimal.Decimal, decision string, sellPct decimal.Decimal, signature string) {
	if e.audits == nil {
		return
	}
	row := &domain.DecisionAudit{
		PositionID:   position.ID,
		TokenMint:    position.TokenMint,
		CheckedAt:    e.now(),
		Price:        currentPrice,
		PeakPrice:    position.PeakPrice,
		TrailingStop: position.Levels.TrailingStopPrice,
		Decision:     decision,
		SellPct:      sellPct,
		TxSignature:  signature,
	}
	if err := e.audits.InsertBulk(ctx, []*domain.DecisionAudit{row}); err != nil {
		e.logger.Warn("audit write failed",
			zap.String("position", position.ID), zap.Error(err))
	}
}

// ExecuteExit sells decision.SellPct of the remaining amount. On executor
// failure the position is left untouched and the error is surfaced; the
// next poll cycle retries. On success the position mutates atomically:
// remaining amount, realized PnL, tier flags, status, audit record.
func (e *Engine) ExecuteExit(ctx context.Context, position *domain.Position, decision *ExitDecision, currentPrice decimal.Decimal, strategy *domain.ExitStrategy) (*domain.ExitExecution, error) {
	tokensToSell := position.RemainingAmount.Mul(decision.SellPct).Div(oneHundred)
	if decision.FullExit || decision.SellPct.GreaterThanOrEqual(oneHundred) {
		tokensToSell = position.RemainingAmount
	}
	if !tokensToSell.IsPositive() {
		return nil, nil
	}

	result, err := e.executor.Execute(ctx, domain.TradeRequest{
		Direction:     domain.TradeDirectionSell,
		TokenMint:     position.TokenMint,
		Amount:        tokensToSell,
		TokenDecimals: position.TokenDecimals,
	})
	if err != nil {
		return nil, fmt.Errorf("execute sell: %w", err)
	}
	if !result.Success {
		e.logger.Error("exit execution failed",
			zap.String("position", position.ID),
			zap.String("reason", string(result.FailureReason)),
			zap.String("detail", result.FailureDetail))
		return nil, fmt.Errorf("%w: %s: %s", ErrExitFailed, result.FailureReason, result.FailureDetail)
	}

	// Mutate a copy so a persistence failure leaves the caller's position
	// exactly as it was.
	updated := position.Clone()
	execution := e.applyExit(updated, decision, currentPrice, result, strategy)

	if err := e.executions.Insert(ctx, execution); err != nil {
		return nil, fmt.Errorf("persist exit execution (swap settled as %s): %w", result.TxSignature, err)
	}
	if err := e.positions.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist position after exit (swap settled as %s): %w", result.TxSignature, err)
	}

	*position = *updated

	e.logger.Info("exit executed",
		zap.String("position", position.ID),
		zap.String("reason", decision.Reason),
		zap.String("sell_pct", decision.SellPct.String()),
		zap.String("tokens_sold", execution.TokensSold.String()),
		zap.String("proceeds_sol", execution.ProceedsSOL.String()),
		zap.String("pnl_sol", execution.RealizedPnLSOL.String()),
		zap.String("status", string(position.Status)),
		zap.String("signature", execution.TxSignature))

	return execution, nil
}

// applyExit applies a settled sell to the position and builds the audit
// record.
func (e *Engine) applyExit(position *domain.Position, decision *ExitDecision, currentPrice decimal.Decimal, result *domain.SwapResult, strategy *domain.ExitStrategy) *domain.ExitExecution {
	now := e.now()

	tokensSold := result.InAmount
	if tokensSold.GreaterThan(position.RemainingAmount) {
		tokensSold = position.RemainingAmount
	}
	proceeds := result.OutAmount

	costBasis := decimal.Zero
	if position.EntryAmount.IsPositive() {
		costBasis = position.EntrySOL.Mul(tokensSold).Div(position.EntryAmount)
	}
	pnl := proceeds.Sub(costBasis)

	position.RemainingAmount = position.RemainingAmount.Sub(tokensSold)
	if position.RemainingAmount.IsNegative() {
		position.RemainingAmount = decimal.Zero
	}
	position.RealizedPnLSOL = position.RealizedPnLSOL.Add(pnl)

	if decision.LevelIndex >= 0 && decision.LevelIndex < len(position.Levels.TakeProfits) {
		tier := &position.Levels.TakeProfits[decision.LevelIndex]
		tier.Triggered = true
		triggeredAt := now
		tier.TriggeredAt = &triggeredAt
		tier.TxSignature = result.TxSignature
	}

	execution := &domain.ExitExecution{
		ID:             uuid.NewString(),
		PositionID:     position.ID,
		Reason:         decision.Reason,
		LevelIndex:     decision.LevelIndex,
		SellPct:        decision.SellPct,
		TokensSold:     tokensSold,
		ProceedsSOL:    proceeds,
		Price:          currentPrice,
		TxSignature:    result.TxSignature,
		RealizedPnLSOL: pnl,
		ExecutedAt:     now,
	}
	position.ExecutionIDs = append(position.ExecutionIDs, execution.ID)
	position.ExitSignatures = append(position.ExitSignatures, result.TxSignature)
	position.UpdatedAt = now

	e.recomputeStatus(position, decision, currentPrice, strategy, now)

	return execution
}

// recomputeStatus moves the position through its lifecycle after an exit.
func (e *Engine) recomputeStatus(position *domain.Position, decision *ExitDecision, currentPrice decimal.Decimal, strategy *domain.ExitStrategy, now time.Time) {
	switch {
	case decision.FullExit || position.RemainingAmount.IsZero():
		position.Status = domain.PositionStatusClosed
		position.ExitReason = decision.Reason
		position.ExitTime = &now
		price := currentPrice
		position.ExitPrice = &price
	case strategy != nil && strategy.HasMoonbag() &&
		(decision.Reason == domain.ExitReasonTrailingStop || position.Levels.AllTakeProfitsHit()):
		// A trailing stop sells everything but the moonbag, so what is
		// left IS the moonbag; without the transition the trailing rule
		// would keep matching and sell the remainder down every cycle.
		position.Status = domain.PositionStatusMoonbag
		position.IsMoonbag = true
		position.MoonbagPct = strategy.MoonbagPct()
	default:
		position.Status = domain.PositionStatusPartialExit
	}
}

// keyedMutex serializes work per position id. Entries are reused for the
// lifetime of the process; the map stays bounded by the number of distinct
// positions seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
