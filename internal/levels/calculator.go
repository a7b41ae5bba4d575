// Package levels computes concrete exit trigger prices from an exit
// strategy and keeps the trailing stop floor up to date as price rises.
package levels

import (
	"errors"

	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
)

// Calculation errors.
var (
	ErrInvalidEntryPrice = errors.New("entry price must be positive")
	ErrNilStrategy       = errors.New("strategy is required")
)

// Calculate derives all trigger prices for a position from its entry price
// and strategy. Pure and deterministic: same inputs, same levels.
//
//   - stop loss       = entry * (1 - stop_loss_pct)
//   - take profit n   = entry * tier_n.multiplier, in tier order
//   - trail activation = entry * trailing.activation_multiplier
//   - moonbag stop    = entry * (1 - moonbag.stop_loss_pct), absent when the
//     strategy rides the moonbag to zero
func Calculate(entryPrice decimal.Decimal, strategy *domain.ExitStrategy) (domain.PositionLevels, error) {
	if strategy == nil {
		return domain.PositionLevels{}, ErrNilStrategy
	}
	if !entryPrice.IsPositive() {
		return domain.PositionLevels{}, ErrInvalidEntryPrice
	}

	lvls := domain.PositionLevels{
		StopLossPrice: entryPrice.Mul(decimal.NewFromInt(1).Sub(strategy.StopLossPct)),
	}

	lvls.TakeProfits = make([]domain.TakeProfitLevel, 0, len(strategy.TakeProfits))
	for _, tier := range strategy.TakeProfits {
		lvls.TakeProfits = append(lvls.TakeProfits, domain.TakeProfitLevel{
			TriggerPrice: entryPrice.Mul(tier.Multiplier),
			SellPct:      tier.SellPct,
		})
	}

	if strategy.Trailing != nil {
		activation := entryPrice.Mul(strategy.Trailing.ActivationMultiplier)
		lvls.TrailingActivationPrice = &activation
	}

	if strategy.Moonbag != nil && strategy.Moonbag.StopLossPct != nil {
		stop := entryPrice.Mul(decimal.NewFromInt(1).Sub(*strategy.Moonbag.StopLossPct))
		lvls.MoonbagStopPrice = &stop
	}

	return lvls, nil
}

// RecalculateTrailingStop ratchets the trailing floor upward as price rises.
// A no-op until currentPrice reaches the activation price; once active the
// floor is max(existing, currentPrice * (1 - distance_pct)) and never moves
// down. Idempotent for non-increasing price sequences.
func RecalculateTrailingStop(lvls domain.PositionLevels, currentPrice decimal.Decimal, strategy *domain.ExitStrategy) domain.PositionLevels {
	if strategy == nil || strategy.Trailing == nil || lvls.TrailingActivationPrice == nil {
		return lvls
	}
	if currentPrice.LessThan(*lvls.TrailingActivationPrice) && !lvls.TrailingActive() {
		return lvls
	}

	candidate := currentPrice.Mul(decimal.NewFromInt(1).Sub(strategy.Trailing.DistancePct))
	if lvls.TrailingStopPrice == nil || candidate.GreaterThan(*lvls.TrailingStopPrice) {
		lvls.TrailingStopPrice = &candidate
	}
	return lvls
}
