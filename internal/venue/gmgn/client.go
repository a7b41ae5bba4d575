// Package gmgn implements the fallback swap venue on top of the GMGN
// router API. The router binds the route to the fee payer at quote time and
// returns the unsigned transaction together with the quote.
package gmgn

import (
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
	DefaultBaseURL      = "https://gmgn.ai/defi/router/v1/sol"
	DefaultQuoteTimeout = 5 * time.Second
	DefaultQuoteTTL     = 15 * time.Second
	VenueName           = "gmgn"
)

// Client implements venue.Venue against the GMGN swap router.
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

// NewClient creates a new GMGN venue client.
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

// routeResponse is the get_swap_route payload envelope.
type routeResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Quote struct {
			InAmount             string `json:"inAmount"`
			OutAmount            string `json:"outAmount"`
			OtherAmountThreshold string `json:"otherAmountThreshold"`
			SlippageBps          int    `json:"slippageBps"`
			PriceImpactPct       string `json:"priceImpactPct"`
		} `json:"quote"`
		RawTx struct {
			SwapTransaction string `json:"swapTransaction"`
		} `json:"raw_tx"`
	} `json:"data"`
}

// Quote fetches a route bound to the fee payer. The prebuilt transaction is
// carried in SwapQuote.Route for BuildSwapTransaction.
func (c *Client) Quote(ctx context.Context, req venue.QuoteRequest) (*domain.SwapQuote, error) {
	if req.UserPublicKey == "" {
		return nil, fmt.Errorf("gmgn: quote requires the fee payer public key")
	}

	// The router takes slippage in percent.
	slippagePct := decimal.NewFromInt(int64(req.SlippageBps)).Div(decimal.NewFromInt(100))

	q := url.Values{}
	q.Set("token_in_address", req.InputMint)
	q.Set("token_out_address", req.OutputMint)
	q.Set("in_amount", strconv.FormatUint(req.AmountRaw, 10))
	q.Set("from_address", req.UserPublicKey)
	q.Set("slippage", slippagePct.String())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tx/get_swap_route?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gmgn: create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &venue.TransportError{Venue: VenueName, Op: "quote", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &venue.TransportError{Venue: VenueName, Op: "quote", Err: err}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &venue.TransportError{
			Venue: VenueName,
			Op:    "quote",
			Err:   fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmgn: quote rejected: status %d: %s", resp.StatusCode, string(body))
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("gmgn: unmarshal route: %w", err)
	}
	if rr.Code != 0 {
		return nil, fmt.Errorf("gmgn: route rejected: code %d: %s", rr.Code, rr.Msg)
	}
	if rr.Data.RawTx.SwapTransaction == "" {
		return nil, fmt.Errorf("gmgn: route missing transaction")
	}

	inAmount, err := strconv.ParseUint(rr.Data.Quote.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("gmgn: parse inAmount %q: %w", rr.Data.Quote.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(rr.Data.Quote.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("gmgn: parse outAmount %q: %w", rr.Data.Quote.OutAmount, err)
	}
	minOut, err := strconv.ParseUint(rr.Data.Quote.OtherAmountThreshold, 10, 64)
	if err != nil {
		minOut = outAmount
	}

	impact, err := decimal.NewFromString(rr.Data.Quote.PriceImpactPct)
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
		SlippageBps:  req.SlippageBps,
		PriceImpact:  impact,
		Route:        []byte(rr.Data.RawTx.SwapTransaction),
		FetchedAt:    now,
		ExpiresAt:    now.Add(c.quoteTTL),
	}, nil
}

// BuildSwapTransaction decodes the transaction the router prebuilt at quote
// time. The fee payer must match the one the quote was requested for.
func (c *Client) BuildSwapTransaction(_ context.Context, quote *domain.SwapQuote, _ string) ([]byte, error) {
	if len(quote.Route) == 0 {
		return nil, fmt.Errorf("gmgn: quote carries no transaction")
	}
	tx, err := base64.StdEncoding.DecodeString(string(quote.Route))
	if err != nil {
		return nil, fmt.Errorf("gmgn: decode swap transaction: %w", err)
	}
	return tx, nil
}

// Submit broadcasts the signed transaction and waits for confirmation.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(signedTx)

	signature, err := c.rpc.SendTransaction(ctx, encoded, &solana.SendOpts{SkipPreflight: true})
	if err != nil {
		return "", fmt.Errorf("gmgn: send transaction: %w", err)
	}

	if _, err := c.rpc.WaitForConfirmation(ctx, signature); err != nil {
		return signature, fmt.Errorf("gmgn: confirm %s: %w", signature, err)
	}
	return signature, nil
}
