package pricing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultMaxStaleness bounds how old a cached price may be before it is no
// longer usable as a fallback.
const DefaultMaxStaleness = 30 * time.Second

// CachedProvider wraps a Provider with a Redis-backed cache. Successful
// fetches are written through; when the inner provider fails, a recent
// cached price is served instead.
type CachedProvider struct {
	inner        Provider
	client       *redis.Client
	ttl          time.Duration
	maxStaleness time.Duration
	now          func() time.Time
}

// CacheOption configures CachedProvider.
type CacheOption func(*CachedProvider)

// WithMaxStaleness sets the fallback staleness bound.
func WithMaxStaleness(d time.Duration) CacheOption {
	return func(c *CachedProvider) {
		c.maxStaleness = d
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedProvider) {
		c.now = now
	}
}

// NewCachedProvider creates a caching decorator around inner.
func NewCachedProvider(inner Provider, client *redis.Client, opts ...CacheOption) *CachedProvider {
	c := &CachedProvider{
		inner:        inner,
		client:       client,
		maxStaleness: DefaultMaxStaleness,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ttl = 2 * c.maxStaleness
	return c
}

var _ Provider = (*CachedProvider)(nil)

func priceKey(mint string) string {
	return "price:" + mint
}

// FetchPrice fetches from the inner provider and writes the result through
// to Redis. On inner failure the cached price is returned if fresh enough,
// otherwise the inner error is propagated.
func (c *CachedProvider) FetchPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	price, err := c.inner.FetchPrice(ctx, mint)
	if err == nil {
		c.store(ctx, mint, price)
		return price, nil
	}

	cached, ok := c.lookup(ctx, mint)
	if ok {
		return cached, nil
	}
	return decimal.Zero, err
}

func (c *CachedProvider) store(ctx context.Context, mint string, price decimal.Decimal) {
	key := priceKey(mint)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, "price", price.String(), "ts", c.now().UnixMilli())
	pipe.Expire(ctx, key, c.ttl)
	// Cache writes are best effort; a failed write must not fail the fetch.
	_, _ = pipe.Exec(ctx)
}

func (c *CachedProvider) lookup(ctx context.Context, mint string) (decimal.Decimal, bool) {
	vals, err := c.client.HGetAll(ctx, priceKey(mint)).Result()
	if err != nil || len(vals) == 0 {
		return decimal.Zero, false
	}

	tsMillis, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return decimal.Zero, false
	}
	age := c.now().Sub(time.UnixMilli(tsMillis))
	if age > c.maxStaleness {
		return decimal.Zero, false
	}

	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// Invalidate drops the cached price for a mint.
func (c *CachedProvider) Invalidate(ctx context.Context, mint string) error {
	if err := c.client.Del(ctx, priceKey(mint)).Err(); err != nil {
		return fmt.Errorf("invalidate price cache for %s: %w", mint, err)
	}
	return nil
}
