// Package stub provides a scripted price provider for tests.
package stub

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Provider returns scripted prices per mint.
type Provider struct {
	mu     sync.Mutex
	Prices map[string]decimal.Decimal
	Errs   map[string]error
	Calls  []string
}

// SetPrice sets the price returned for a mint.
func (p *Provider) SetPrice(mint string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Prices == nil {
		p.Prices = make(map[string]decimal.Decimal)
	}
	p.Prices[mint] = price
}

// FetchPrice returns the scripted price or error for the mint.
func (p *Provider) FetchPrice(_ context.Context, mint string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, mint)
	if err, ok := p.Errs[mint]; ok {
		return decimal.Zero, err
	}
	return p.Prices[mint], nil
}
