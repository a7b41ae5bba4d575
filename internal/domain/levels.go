package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TakeProfitLevel is a single take-profit tier. Tiers fire strictly in
// order: a tier cannot trigger before every earlier tier has triggered.
type TakeProfitLevel struct {
	TriggerPrice decimal.Decimal // entry_price * tier multiplier
	SellPct      decimal.Decimal // percent of remaining to sell, before moonbag rescaling
	Triggered    bool
	TriggeredAt  *time.Time
	TxSignature  string // settlement reference of the tier's exit
}

// PositionLevels holds the concrete trigger prices computed for a position.
// Owned 1:1 by Position and recomputed in place as price rises.
type PositionLevels struct {
	StopLossPrice decimal.Decimal

	TakeProfits []TakeProfitLevel

	// Trailing stop. Activation is fixed at entry; the floor is set once
	// price reaches activation and then only ratchets upward.
	TrailingActivationPrice *decimal.Decimal
	TrailingStopPrice       *decimal.Decimal

	// Moonbag stop. Nil means ride-to-zero: the moonbag has no stop.
	MoonbagStopPrice *decimal.Decimal
}

// NextTakeProfit returns the index and tier of the first untriggered
// take-profit level, or (-1, nil) when every tier has fired.
func (l *PositionLevels) NextTakeProfit() (int, *TakeProfitLevel) {
	for i := range l.TakeProfits {
		if !l.TakeProfits[i].Triggered {
			return i, &l.TakeProfits[i]
		}
	}
	return -1, nil
}

// AllTakeProfitsHit reports whether every take-profit tier has triggered.
func (l *PositionLevels) AllTakeProfitsHit() bool {
	for i := range l.TakeProfits {
		if !l.TakeProfits[i].Triggered {
			return false
		}
	}
	return len(l.TakeProfits) > 0
}

// TrailingActive reports whether the trailing floor has been set.
func (l *PositionLevels) TrailingActive() bool {
	return l.TrailingStopPrice != nil
}
