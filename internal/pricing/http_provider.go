package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.jup.ag/price/v2"
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 300 * time.Millisecond
)

// HTTPProvider fetches prices from the Jupiter price API, quoted against
// wrapped SOL.
type HTTPProvider struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// ProviderOption configures HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ProviderOption {
	return func(p *HTTPProvider) {
		p.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		p.client = client
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ProviderOption {
	return func(p *HTTPProvider) {
		p.maxRetries = n
	}
}

// NewHTTPProvider creates a price provider.
func NewHTTPProvider(opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile-time interface check.
var _ Provider = (*HTTPProvider)(nil)

type priceResponse struct {
	Data map[string]*struct {
		Price string `json:"price"`
	} `json:"data"`
}

// FetchPrice returns the current SOL price of the mint. Transport failures
// and 429/5xx are retried with a short delay.
func (p *HTTPProvider) FetchPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", mint)
	q.Set("vsToken", domain.WrappedSOLMint)
	endpoint := p.baseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			case <-time.After(p.retryDelay):
			}
		}

		price, retriable, err := p.fetchOnce(ctx, endpoint, mint)
		if err == nil {
			return price, nil
		}
		if !retriable {
			return decimal.Zero, err
		}
		lastErr = err
	}

	return decimal.Zero, fmt.Errorf("fetch price for %s: %w", mint, lastErr)
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, endpoint, mint string) (decimal.Decimal, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return decimal.Zero, true, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, false, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return decimal.Zero, false, fmt.Errorf("unmarshal price response: %w", err)
	}

	entry := pr.Data[mint]
	if entry == nil || entry.Price == "" {
		return decimal.Zero, false, ErrPriceUnavailable
	}

	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse price %q: %w", entry.Price, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, false, ErrPriceUnavailable
	}
	return price, false, nil
}
