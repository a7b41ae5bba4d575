package exits

import (
	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// ExitDecision describes one exit the engine decided to take.
type ExitDecision struct {
	Reason     string          // domain.ExitReason* constant
	SellPct    decimal.Decimal // percent of remaining to sell
	LevelIndex int             // take-profit tier index, -1 otherwise
	FullExit   bool            // the position closes after this exit
}

// CheckExitConditions evaluates the exit triggers for a position at the
// current price. Conditions are checked in strict priority order — stop
// loss, trailing stop, take profit — and the first match wins. Pure: no
// state is mutated here, only in ExecuteExit.
func CheckExitConditions(position *domain.Position, currentPrice decimal.Decimal, strategy *domain.ExitStrategy) *ExitDecision {
	lvls := &position.Levels

	// 1. Stop loss. Moonbag positions suppress the normal stop: only the
	// dedicated moonbag stop can close them, and with no moonbag stop the
	// remainder rides to zero with no further checks this cycle.
	if position.IsMoonbag {
		if lvls.MoonbagStopPrice != nil && currentPrice.LessThanOrEqual(*lvls.MoonbagStopPrice) {
			return &ExitDecision{
				Reason:     domain.ExitReasonMoonbagStop,
				SellPct:    oneHundred,
				LevelIndex: -1,
				FullExit:   true,
			}
		}
		return nil
	}

	if currentPrice.LessThanOrEqual(lvls.StopLossPrice) {
		return &ExitDecision{
			Reason:     domain.ExitReasonStopLoss,
			SellPct:    oneHundred,
			LevelIndex: -1,
			FullExit:   true,
		}
	}

	moonbagPct := decimal.Zero
	if strategy != nil {
		moonbagPct = strategy.MoonbagPct()
	}

	// 2. Trailing stop. Sells everything but the moonbag remainder.
	if lvls.TrailingActive() && currentPrice.LessThanOrEqual(*lvls.TrailingStopPrice) {
		sellPct := oneHundred.Sub(moonbagPct)
		return &ExitDecision{
			Reason:     domain.ExitReasonTrailingStop,
			SellPct:    sellPct,
			LevelIndex: -1,
			FullExit:   moonbagPct.IsZero(),
		}
	}

	// 3. Take profit: only the next untriggered tier can fire.
	idx, tier := lvls.NextTakeProfit()
	if tier != nil && currentPrice.GreaterThanOrEqual(tier.TriggerPrice) {
		// Rescale by the tradeable fraction so the moonbag is untouched.
		actualPct := tier.SellPct.Div(oneHundred).Mul(oneHundred.Sub(moonbagPct)).Round(4)
		isLast := idx == len(lvls.TakeProfits)-1
		return &ExitDecision{
			Reason:     domain.ExitReasonTakeProfit,
			SellPct:    actualPct,
			LevelIndex: idx,
			FullExit:   isLast && moonbagPct.IsZero() && tier.SellPct.GreaterThanOrEqual(oneHundred),
		}
	}

	return nil
}
