package domain

import "github.com/shopspring/decimal"

// TakeProfitTier configures one take-profit level of a strategy.
type TakeProfitTier struct {
	Multiplier decimal.Decimal // price multiple of entry that triggers the tier
	SellPct    decimal.Decimal // percent of remaining to sell when triggered
}

// TrailingConfig configures an optional trailing stop.
type TrailingConfig struct {
	ActivationMultiplier decimal.Decimal // price multiple of entry that arms the trail
	DistancePct          decimal.Decimal // fraction below peak, e.g. 0.15 = 15%
}

// MoonbagConfig configures an optional retained remainder after all
// take-profit tiers fire.
type MoonbagConfig struct {
	Pct         decimal.Decimal  // percent of the position kept as moonbag
	StopLossPct *decimal.Decimal // fraction below entry; nil means ride to zero
}

// ExitStrategy is the exit plan applied to a position: a fixed stop-loss,
// ordered take-profit tiers, and optional trailing stop and moonbag.
type ExitStrategy struct {
	StrategyID  string
	Name        string
	Description string

	StopLossPct decimal.Decimal // fraction below entry, e.g. 0.5 = -50%
	TakeProfits []TakeProfitTier

	Trailing *TrailingConfig
	Moonbag  *MoonbagConfig
}

// Clone returns a deep copy of the strategy.
func (s *ExitStrategy) Clone() *ExitStrategy {
	c := *s
	c.TakeProfits = append([]TakeProfitTier(nil), s.TakeProfits...)
	if s.Trailing != nil {
		t := *s.Trailing
		c.Trailing = &t
	}
	if s.Moonbag != nil {
		m := *s.Moonbag
		if s.Moonbag.StopLossPct != nil {
			v := *s.Moonbag.StopLossPct
			m.StopLossPct = &v
		}
		c.Moonbag = &m
	}
	return &c
}

// MoonbagPct returns the configured moonbag percent, zero when absent.
func (s *ExitStrategy) MoonbagPct() decimal.Decimal {
	if s.Moonbag == nil {
		return decimal.Zero
	}
	return s.Moonbag.Pct
}

// HasMoonbag reports whether the strategy keeps a moonbag remainder.
func (s *ExitStrategy) HasMoonbag() bool {
	return s.Moonbag != nil && s.Moonbag.Pct.IsPositive()
}
