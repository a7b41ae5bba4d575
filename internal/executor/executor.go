// Package executor turns directional trade requests into settled or failed
// swaps: quote, build, sign, submit, confirm, with bounded retries at the
// quote stage and a secondary venue fallback.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/observability"
	"solana-exit-engine/internal/signer"
	"solana-exit-engine/internal/venue"
)

// Default configuration values.
const (
	DefaultMaxQuoteAttempts = 3
	DefaultQuoteRetryDelay  = 500 * time.Millisecond
	DefaultQuoteTimeout     = 5 * time.Second
	DefaultSubmitTimeout    = 60 * time.Second
	DefaultSlippageBps      = 100
)

// Executor errors for programmatic misuse. Venue failures never surface as
// errors; they are reported inside the SwapResult.
var (
	ErrInvalidDirection = errors.New("invalid trade direction")
	ErrInvalidAmount    = errors.New("trade amount must be positive")
)

// Config bounds executor behavior.
type Config struct {
	// MaxTradeSOL rejects trades whose SOL notional exceeds it. Zero
	// disables the guard.
	MaxTradeSOL decimal.Decimal

	SlippageBps      int
	MaxQuoteAttempts int
	QuoteRetryDelay  time.Duration
	QuoteTimeout     time.Duration
	SubmitTimeout    time.Duration

	// FallbackEnabled allows the secondary venue to be tried after any
	// primary venue failure.
	FallbackEnabled bool
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.SlippageBps == 0 {
		c.SlippageBps = DefaultSlippageBps
	}
	if c.MaxQuoteAttempts == 0 {
		c.MaxQuoteAttempts = DefaultMaxQuoteAttempts
	}
	if c.QuoteRetryDelay == 0 {
		c.QuoteRetryDelay = DefaultQuoteRetryDelay
	}
	if c.QuoteTimeout == 0 {
		c.QuoteTimeout = DefaultQuoteTimeout
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}
	return c
}

// Executor executes swaps against a primary venue with optional fallback.
type Executor struct {
	primary  venue.Venue
	fallback venue.Venue // may be nil
	signer   signer.Signer
	config   Config
	logger   *zap.Logger
}

// New creates an Executor. fallback may be nil; it is only used when
// Config.FallbackEnabled is set.
func New(primary, fallback venue.Venue, s signer.Signer, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		primary:  primary,
		fallback: fallback,
		signer:   s,
		config:   cfg.withDefaults(),
		logger:   logger,
	}
}

// lamportsPerSOL is the raw base unit scale of SOL.
const lamportsPerSOL = 9

// Execute orchestrates quote, build, sign, submit and confirm for the
// request. Venue failures are returned inside the result, never as an
// error; the error return is reserved for malformed requests.
func (e *Executor) Execute(ctx context.Context, req domain.TradeRequest) (*domain.SwapResult, error) {
	start := time.Now()

	if req.Direction != domain.TradeDirectionBuy && req.Direction != domain.TradeDirectionSell {
		return nil, ErrInvalidDirection
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// Pre-trade guards: no network calls, no retries, immediate failure.
	if req.Direction == domain.TradeDirectionBuy &&
		!e.config.MaxTradeSOL.IsZero() && req.Amount.GreaterThan(e.config.MaxTradeSOL) {
		return e.failedResult(e.primary.Name(), start, domain.FailureUnknown,
			fmt.Sprintf("trade size %s SOL over configured maximum %s", req.Amount, e.config.MaxTradeSOL)), nil
	}
	if !e.signer.Ready(ctx) {
		return e.failedResult(e.primary.Name(), start, domain.FailureUnknown, "signer not ready"), nil
	}

	result := e.executeOnVenue(ctx, e.primary, req, start)
	if result.Success {
		return result, nil
	}

	if e.config.FallbackEnabled && e.fallback != nil && ctx.Err() == nil {
		e.logger.Warn("primary venue failed, trying fallback",
			zap.String("primary", e.primary.Name()),
			zap.String("fallback", e.fallback.Name()),
			zap.String("reason", string(result.FailureReason)),
			zap.String("detail", result.FailureDetail))
		fallbackResult := e.executeOnVenue(ctx, e.fallback, req, start)
		return fallbackResult, nil
	}

	return result, nil
}

// executeOnVenue runs the full pipeline against one venue.
func (e *Executor) executeOnVenue(ctx context.Context, v venue.Venue, req domain.TradeRequest, start time.Time) *domain.SwapResult {
	observability.RecordVenueAttempt(v.Name())

	quoteReq, err := e.buildQuoteRequest(req)
	if err != nil {
		return e.failedResult(v.Name(), start, domain.FailureUnknown, err.Error())
	}

	quote, err := e.GetQuote(ctx, v, quoteReq)
	if err != nil {
		return e.failedResult(v.Name(), start, ClassifyFailure(err.Error()), err.Error())
	}

	signature, err := e.buildSignSubmit(ctx, v, quote)
	if err != nil {
		result := e.failedResult(v.Name(), start, ClassifyFailure(err.Error()), err.Error())
		result.TxSignature = signature // may carry a sig that failed on chain
		return result
	}

	inAmount := rawToDecimal(quote.InAmountRaw, e.inputDecimals(req))
	outAmount := rawToDecimal(quote.OutAmountRaw, e.outputDecimals(req))

	result := &domain.SwapResult{
		Success:       true,
		Venue:         v.Name(),
		TxSignature:   signature,
		InAmount:      inAmount,
		OutAmount:     outAmount,
		Price:         swapPrice(req.Direction, inAmount, outAmount),
		ExecutionTime: time.Since(start),
	}

	e.logger.Info("swap executed",
		zap.String("venue", v.Name()),
		zap.String("direction", string(req.Direction)),
		zap.String("mint", req.TokenMint),
		zap.String("signature", signature),
		zap.Duration("took", result.ExecutionTime))

	return result
}

// GetQuote fetches a quote with up to MaxQuoteAttempts attempts and
// exponential backoff. Only transient transport failures are retried;
// venue-rejected quotes fail immediately.
func (e *Executor) GetQuote(ctx context.Context, v venue.Venue, req venue.QuoteRequest) (*domain.SwapQuote, error) {
	delay := e.config.QuoteRetryDelay
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxQuoteAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		quoteCtx, cancel := context.WithTimeout(ctx, e.config.QuoteTimeout)
		quoteStart := time.Now()
		quote, err := v.Quote(quoteCtx, req)
		cancel()
		observability.RecordQuoteLatency(v.Name(), time.Since(quoteStart).Seconds())

		if err == nil {
			return quote, nil
		}
		if !venue.IsTransient(err) {
			return nil, fmt.Errorf("quote rejected by %s: %w", v.Name(), err)
		}

		lastErr = err
		e.logger.Debug("transient quote failure",
			zap.String("venue", v.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, fmt.Errorf("quote failed after %d attempts: %w", e.config.MaxQuoteAttempts, lastErr)
}

// buildSignSubmit builds the unsigned transaction bound to the quote, signs
// it and submits it, waiting for confirmation within SubmitTimeout. Returns
// the settlement signature.
func (e *Executor) buildSignSubmit(ctx context.Context, v venue.Venue, quote *domain.SwapQuote) (string, error) {
	if quote.Expired(time.Now()) {
		return "", fmt.Errorf("quote from %s expired before build", v.Name())
	}

	unsigned, err := v.BuildSwapTransaction(ctx, quote, e.signer.PublicKey())
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	signed, err := e.signer.SignTransaction(ctx, unsigned)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, e.config.SubmitTimeout)
	defer cancel()

	submitStart := time.Now()
	signature, err := v.Submit(submitCtx, signed)
	observability.RecordSubmitLatency(v.Name(), time.Since(submitStart).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return signature, fmt.Errorf("confirmation timed out after %s: %w", e.config.SubmitTimeout, err)
		}
		return signature, fmt.Errorf("submit transaction: %w", err)
	}
	return signature, nil
}

// buildQuoteRequest converts natural amounts into raw base units and maps
// the direction onto input/output mints.
func (e *Executor) buildQuoteRequest(req domain.TradeRequest) (venue.QuoteRequest, error) {
	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = e.config.SlippageBps
	}

	qr := venue.QuoteRequest{
		SlippageBps:   slippage,
		UserPublicKey: e.signer.PublicKey(),
	}

	switch req.Direction {
	case domain.TradeDirectionBuy:
		qr.InputMint = domain.WrappedSOLMint
		qr.OutputMint = req.TokenMint
		raw, err := decimalToRaw(req.Amount, lamportsPerSOL)
		if err != nil {
			return venue.QuoteRequest{}, err
		}
		qr.AmountRaw = raw
	case domain.TradeDirectionSell:
		qr.InputMint = req.TokenMint
		qr.OutputMint = domain.WrappedSOLMint
		raw, err := decimalToRaw(req.Amount, req.TokenDecimals)
		if err != nil {
			return venue.QuoteRequest{}, err
		}
		qr.AmountRaw = raw
	}
	return qr, nil
}

func (e *Executor) inputDecimals(req domain.TradeRequest) int {
	if req.Direction == domain.TradeDirectionBuy {
		return lamportsPerSOL
	}
	return req.TokenDecimals
}

func (e *Executor) outputDecimals(req domain.TradeRequest) int {
	if req.Direction == domain.TradeDirectionBuy {
		return req.TokenDecimals
	}
	return lamportsPerSOL
}

func (e *Executor) failedResult(venueName string, start time.Time, reason domain.FailureReason, detail string) *domain.SwapResult {
	observability.RecordVenueError(venueName, string(reason))
	e.logger.Warn("swap failed",
		zap.String("venue", venueName),
		zap.String("reason", string(reason)),
		zap.String("detail", detail))
	return &domain.SwapResult{
		Success:       false,
		Venue:         venueName,
		FailureReason: reason,
		FailureDetail: detail,
		ExecutionTime: time.Since(start),
	}
}

// swapPrice derives SOL per token from realized amounts.
func swapPrice(direction domain.TradeDirection, inAmount, outAmount decimal.Decimal) decimal.Decimal {
	if direction == domain.TradeDirectionBuy {
		if outAmount.IsZero() {
			return decimal.Zero
		}
		return inAmount.Div(outAmount)
	}
	if inAmount.IsZero() {
		return decimal.Zero
	}
	return outAmount.Div(inAmount)
}

// decimalToRaw converts a natural amount to raw base units.
func decimalToRaw(amount decimal.Decimal, decimals int) (uint64, error) {
	raw := amount.Shift(int32(decimals)).Truncate(0)
	if raw.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return uint64(raw.IntPart()), nil
}

// rawToDecimal converts raw base units to a natural amount.
func rawToDecimal(raw uint64, decimals int) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(int32(-decimals))
}
