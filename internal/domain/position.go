package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

// Position lifecycle states.
const (
	PositionStatusPending     PositionStatus = "PENDING"
	PositionStatusOpen        PositionStatus = "OPEN"
	PositionStatusPartialExit PositionStatus = "PARTIAL_EXIT"
	PositionStatusMoonbag     PositionStatus = "MOONBAG"
	PositionStatusClosed      PositionStatus = "CLOSED"
)

// Position represents an open trade being managed from entry to exit.
// Corresponds to the positions table in PostgreSQL.
type Position struct {
	ID          string // UUID
	SignalID    string // upstream signal that opened the position
	TokenMint   string // SPL token mint address
	TokenSymbol string

	Status PositionStatus

	// Entry
	EntryPrice    decimal.Decimal // SOL per token
	EntrySOL      decimal.Decimal // SOL committed at entry
	EntryAmount   decimal.Decimal // tokens received at entry
	EntryTime     time.Time
	TokenDecimals int // SPL mint decimals, needed for raw amount conversion

	// Runtime state
	RemainingAmount decimal.Decimal // tokens still held; only ever decreases
	RealizedPnLSOL  decimal.Decimal // cumulative realized PnL in SOL
	PeakPrice       decimal.Decimal // highest observed price since entry
	LastCheckedAt   time.Time

	StrategyID     string
	ConvictionTier string
	IsMoonbag      bool            // true once only the moonbag remainder is held
	MoonbagPct     decimal.Decimal // percent of the position reserved as moonbag

	Levels PositionLevels

	// Exit record, populated only when closed.
	ExitReason     string
	ExitTime       *time.Time
	ExitPrice      *decimal.Decimal
	ExitSignatures []string

	// Append-only references to ExitExecution records.
	ExecutionIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy. Mutating the copy never touches the
// original's levels, slices, or exit record.
func (p *Position) Clone() *Position {
	c := *p
	c.Levels.TakeProfits = append([]TakeProfitLevel(nil), p.Levels.TakeProfits...)
	for i := range c.Levels.TakeProfits {
		if t := c.Levels.TakeProfits[i].TriggeredAt; t != nil {
			v := *t
			c.Levels.TakeProfits[i].TriggeredAt = &v
		}
	}
	c.Levels.TrailingActivationPrice = cloneDecimalPtr(p.Levels.TrailingActivationPrice)
	c.Levels.TrailingStopPrice = cloneDecimalPtr(p.Levels.TrailingStopPrice)
	c.Levels.MoonbagStopPrice = cloneDecimalPtr(p.Levels.MoonbagStopPrice)
	if p.ExitTime != nil {
		v := *p.ExitTime
		c.ExitTime = &v
	}
	c.ExitPrice = cloneDecimalPtr(p.ExitPrice)
	c.ExitSignatures = append([]string(nil), p.ExitSignatures...)
	c.ExecutionIDs = append([]string(nil), p.ExecutionIDs...)
	return &c
}

func cloneDecimalPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// IsTerminal reports whether the position reached its final state.
func (p *Position) IsTerminal() bool {
	return p.Status == PositionStatusClosed
}

// Exposure returns the SOL cost basis of the tokens still held.
// Returns zero when the entry amount is zero.
func (p *Position) Exposure() decimal.Decimal {
	if p.EntryAmount.IsZero() {
		return decimal.Zero
	}
	return p.EntrySOL.Mul(p.RemainingAmount).Div(p.EntryAmount)
}

// Exit reason codes recorded on executions and closed positions.
const (
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonTakeProfit   = "TAKE_PROFIT"
	ExitReasonMoonbagStop  = "MOONBAG_STOP"
	ExitReasonManual       = "MANUAL"
)
