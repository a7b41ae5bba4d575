package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDirection is the side of a swap relative to SOL.
type TradeDirection string

// Trade directions.
const (
	TradeDirectionBuy  TradeDirection = "buy"  // SOL -> token
	TradeDirectionSell TradeDirection = "sell" // token -> SOL
)

// WrappedSOLMint is the mint address of wrapped SOL.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// TradeRequest describes one directional swap to execute.
type TradeRequest struct {
	Direction     TradeDirection
	TokenMint     string
	Amount        decimal.Decimal // SOL for buys, tokens for sells
	TokenDecimals int
	SlippageBps   int // 0 means the executor default applies
}

// SwapQuote is a venue quote for one swap. Ephemeral: created and consumed
// within a single executor call.
type SwapQuote struct {
	Venue        string
	InputMint    string
	OutputMint   string
	InAmountRaw  uint64 // raw base units of the input mint
	OutAmountRaw uint64 // expected raw base units of the output mint
	MinOutRaw    uint64 // minimum output after slippage
	SlippageBps  int
	PriceImpact  decimal.Decimal
	Route        []byte // venue-specific route payload echoed back on build
	FetchedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the quote is past its validity window.
func (q *SwapQuote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// FailureReason classifies a failed swap.
type FailureReason string

// Swap failure classifications.
const (
	FailureSlippageExceeded    FailureReason = "SLIPPAGE_EXCEEDED"
	FailureInsufficientBalance FailureReason = "INSUFFICIENT_BALANCE"
	FailureExpired             FailureReason = "EXPIRED"
	FailureUnknown             FailureReason = "UNKNOWN"
)

// SwapResult is the outcome of one executor call. Venue failures are
// reported here, never as Go errors.
type SwapResult struct {
	Success     bool
	Venue       string
	TxSignature string // settlement reference, empty on failure

	InAmount  decimal.Decimal // realized input in natural units
	OutAmount decimal.Decimal // realized output in natural units
	Price     decimal.Decimal // SOL per token actually achieved

	FailureReason FailureReason
	FailureDetail string

	ExecutionTime time.Duration
}
