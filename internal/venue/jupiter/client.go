// Package jupiter implements the primary swap venue on top of the Jupiter
// v6 aggregator HTTP API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
	"solana-exit-engine/internal/solana"
	"solana-exit-engine/internal/venue"
)

// Default configuration values.
const (
	DefaultBaseURL      = "https://quote-api.jup.ag/v6"
	DefaultQuoteTimeout = 5 * time.Second
	DefaultQuoteTTL     = 20 * time.Second
	VenueName           = "jupiter"
)

// Client implements venue.Venue against the Jupiter v6 API. Transactions
// are broadcast and confirmed through the shared Solana RPC client.
type Client struct {
	baseURL  string
	client   *http.Client
	rpc      solana.RPCClient
	quoteTTL time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithQuoteTTL sets the quote validity window.
func WithQuoteTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		c.quoteTTL = d
	}
}

// NewClient creates a new Jupiter venue client.
func NewClient(rpc solana.RPCClient, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		client:   &http.Client{Timeout: DefaultQuoteTimeout},
		rpc:      rpc,
		quoteTTL: DefaultQuoteTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ venue.Venue = (*Client)(nil)

// Name returns the venue identifier.
func (c *Client) Name() string { return VenueName }

// quoteResponse mirrors the fields of the v6 quote payload we consume; the
// raw body is carried along for the swap request.
type quoteResponse struct {
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`
}

// Quote fetches a swap route.
func (c *Client) Quote(ctx context.Context, req venue.QuoteRequest) (*domain.SwapQuote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.AmountRaw, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	body, err := c.get(ctx, "/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("jupiter: unmarshal quote: %w", err)
	}

	inAmount, err := strconv.ParseUint(qr.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("jupiter: parse inAmount %q: %w", qr.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(qr.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("jupiter: parse outAmount %q: %w", qr.OutAmount, err)
	}
	minOut, err := strconv.ParseUint(qr.OtherAmountThreshold, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("jupiter: parse otherAmountThreshold %q: %w", qr.OtherAmountThreshold, err)
	}

	impact, err := decimal.NewFromString(qr.PriceImpactPct)
	if err != nil {
		impact = decimal.Zero
	}

	now := time.Now()
	return &domain.SwapQuote{
		Venue:        VenueName,
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InAmountRaw:  inAmount,
		OutAmountRaw: outAmount,
		MinOutRaw:    minOut,
		SlippageBps:  qr.SlippageBps,
		PriceImpact:  impact,
		Route:        body,
		FetchedAt:    now,
		ExpiresAt:    now.Add(c.quoteTTL),
	}, nil
}

// swapRequest is the v6 swap build payload.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction builds the unsigned transaction for the quote.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *domain.SwapQuote, userPublicKey string) ([]byte, error) {
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.Route,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	body, err := c.post(ctx, "/swap", payload)
	if err != nil {
		return nil, err
	}

	var sr swapResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("jupiter: unmarshal swap response: %w", err)
	}
	if sr.SwapTransaction == "" {
		return nil, fmt.Errorf("jupiter: swap response missing transaction")
	}

	tx, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("jupiter: decode swap transaction: %w", err)
	}
	return tx, nil
}

// Submit broadcasts the signed transaction and waits for confirmation.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(signedTx)

	signature, err := c.rpc.SendTransaction(ctx, encoded, &solana.SendOpts{SkipPreflight: false})
	if err != nil {
		return "", fmt.Errorf("jupiter: send transaction: %w", err)
	}

	if _, err := c.rpc.WaitForConfirmation(ctx, signature); err != nil {
		return signature, fmt.Errorf("jupiter: confirm %s: %w", signature, err)
	}
	return signature, nil
}

// get performs one GET request, wrapping transport-level failures in
// *venue.TransportError so the executor can retry them.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter: create request: %w", err)
	}
	return c.do(req, "quote")
}

// post performs one POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("jupiter: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "swap")
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &venue.TransportError{Venue: VenueName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &venue.TransportError{Venue: VenueName, Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &venue.TransportError{
			Venue: VenueName,
			Op:    op,
			Err:   fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		// Venue-side rejection: not retriable.
		return nil, fmt.Errorf("jupiter: %s rejected: status %d: %s", op, resp.StatusCode, string(body))
	}

	return body, nil
}
