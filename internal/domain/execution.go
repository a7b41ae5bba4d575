package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitExecution is an append-only audit record of one partial or full exit.
// Never mutated after creation. Corresponds to the exit_executions table.
type ExitExecution struct {
	ID         string // UUID
	PositionID string

	Reason     string // ExitReason* constant
	LevelIndex int    // take-profit tier index, -1 for non-tier exits

	SellPct     decimal.Decimal // percent of remaining sold
	TokensSold  decimal.Decimal
	ProceedsSOL decimal.Decimal
	Price       decimal.Decimal // execution price in SOL per token

	TxSignature    string // settlement reference
	RealizedPnLSOL decimal.Decimal

	ExecutedAt time.Time
}
