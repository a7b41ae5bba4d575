package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionAudit is one row of the evaluation audit trail: what the engine
// saw and decided for a position at a single price check. Append-only,
// written best effort.
type DecisionAudit struct {
	PositionID string
	TokenMint  string
	CheckedAt  time.Time

	Price        decimal.Decimal
	PeakPrice    decimal.Decimal
	TrailingStop *decimal.Decimal // nil while the trail is not armed

	// Decision holds an ExitReason* constant, or DecisionHold when no
	// condition fired.
	Decision    string
	SellPct     decimal.Decimal
	TxSignature string // set when the decision produced a settled exit
}

// DecisionHold marks an evaluation that fired no exit condition.
const DecisionHold = "HOLD"
