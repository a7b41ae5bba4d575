// Package pricing provides current token prices for exit evaluation.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when a provider has no price for a mint.
var ErrPriceUnavailable = errors.New("price unavailable")

// Provider fetches the current price of a token, quoted in SOL per token.
type Provider interface {
	FetchPrice(ctx context.Context, mint string) (decimal.Decimal, error)
}
