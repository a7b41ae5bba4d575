// Package stub provides a scripted venue implementation for tests.
package stub

import (
	"context"
	"sync"
	"time"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/venue"
)

// Venue implements venue.Venue with scripted responses. Quote errors are
// consumed in order, allowing transient-then-success sequences.
type Venue struct {
	mu sync.Mutex

	VenueName string

	// QuoteErrs are returned by successive Quote calls until exhausted,
	// after which QuoteFn or the default quote applies.
	QuoteErrs []error
	QuoteFn   func(req venue.QuoteRequest) (*domain.SwapQuote, error)

	BuildErr  error
	SubmitErr error
	SubmitSig string

	QuoteCalls  int
	BuildCalls  int
	SubmitCalls int
}

// NewVenue creates a stub venue that succeeds on every call.
func NewVenue(name string) *Venue {
	return &Venue{
		VenueName: name,
		SubmitSig: name + "-signature",
	}
}

// Compile-time interface check.
var _ venue.Venue = (*Venue)(nil)

// Name returns the venue identifier.
func (v *Venue) Name() string { return v.VenueName }

// Quote returns the next scripted error, or a synthetic quote.
func (v *Venue) Quote(_ context.Context, req venue.QuoteRequest) (*domain.SwapQuote, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.QuoteCalls++

	if len(v.QuoteErrs) > 0 {
		err := v.QuoteErrs[0]
		v.QuoteErrs = v.QuoteErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	if v.QuoteFn != nil {
		return v.QuoteFn(req)
	}

	now := time.Now()
	return &domain.SwapQuote{
		Venue:        v.VenueName,
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InAmountRaw:  req.AmountRaw,
		OutAmountRaw: req.AmountRaw,
		MinOutRaw:    req.AmountRaw,
		SlippageBps:  req.SlippageBps,
		FetchedAt:    now,
		ExpiresAt:    now.Add(time.Minute),
	}, nil
}

// BuildSwapTransaction returns a placeholder transaction payload.
func (v *Venue) BuildSwapTransaction(_ context.Context, _ *domain.SwapQuote, _ string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.BuildCalls++
	if v.BuildErr != nil {
		return nil, v.BuildErr
	}
	return []byte{1, 0, 0, 0}, nil
}

// Submit returns the scripted signature or error.
func (v *Venue) Submit(_ context.Context, _ []byte) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.SubmitCalls++
	if v.SubmitErr != nil {
		return "", v.SubmitErr
	}
	return v.SubmitSig, nil
}
