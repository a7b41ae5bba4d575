// Package venue defines the swap venue contract: quote a trade, build an
// unsigned transaction for it, and submit the signed transaction.
package venue

import (
	"context"
	"errors"
	"fmt"

	"solana-exit-engine/internal/domain"
)

// QuoteRequest asks a venue for a swap route.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	AmountRaw   uint64 // raw base units of the input mint
	SlippageBps int
	// UserPublicKey is the fee payer. Some routers bind the route to it
	// already at quote time.
	UserPublicKey string
}

// Venue is a swap venue capable of quoting, building and submitting swaps.
type Venue interface {
	// Name returns the venue identifier used in results and logs.
	Name() string

	// Quote fetches a swap route. A venue-side rejection (no route, amount
	// too small) is returned as a plain error; transport failures are
	// returned as *TransportError so callers can retry them.
	Quote(ctx context.Context, req QuoteRequest) (*domain.SwapQuote, error)

	// BuildSwapTransaction builds the unsigned transaction bound to the
	// quote for the given fee payer. Returns serialized transaction bytes.
	BuildSwapTransaction(ctx context.Context, quote *domain.SwapQuote, userPublicKey string) ([]byte, error)

	// Submit broadcasts the signed transaction and waits for confirmation.
	// Returns the settlement signature.
	Submit(ctx context.Context, signedTx []byte) (string, error)
}

// TransportError marks a transient transport failure (connection refused,
// timeout, 5xx, 429). Only these are retried at the quote stage.
type TransportError struct {
	Venue string
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retriable transport failure.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
