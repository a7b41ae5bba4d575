package executor

import (
	"strings"

	"solana-exit-engine/internal/domain"
)

// ClassifyFailure maps an on-chain or venue rejection message to a failure
// reason by substring inspection. Checks run in order; the first match wins.
func ClassifyFailure(message string) domain.FailureReason {
	m := strings.ToLower(message)

	switch {
	case strings.Contains(m, "slippage") || strings.Contains(m, "exceeds"):
		return domain.FailureSlippageExceeded
	case strings.Contains(m, "insufficient") || strings.Contains(m, "balance"):
		return domain.FailureInsufficientBalance
	case strings.Contains(m, "expired") || strings.Contains(m, "blockhash"):
		return domain.FailureExpired
	default:
		return domain.FailureUnknown
	}
}
