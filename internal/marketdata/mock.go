package marketdata

import (
	"context"
	"sync"
)

// MockGateway is a Gateway backed by a canned snapshot. It serves unit
// tests and the offline paper mode, where no terminal bridge is running.
type MockGateway struct {
	mu       sync.Mutex
	prices   PriceSnapshot
	err      error
	requests [][]string
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a mock gateway serving the given snapshot.
func NewMockGateway(prices PriceSnapshot) *MockGateway {
	if prices == nil {
		prices = PriceSnapshot{}
	}
	return &MockGateway{prices: prices}
}

// SetError makes every subsequent fetch fail with err (nil clears it).
func (m *MockGateway) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPrice stores a quote in the canned snapshot.
func (m *MockGateway) SetPrice(symbol string, side QuoteSide, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices.Set(symbol, side, price)
}

// Remove deletes both sides of a symbol from the canned snapshot.
func (m *MockGateway) Remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prices, Key(symbol, SideAsk))
	delete(m.prices, Key(symbol, SideBid))
}

// Requests returns the symbol sets fetched so far.
func (m *MockGateway) Requests() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.requests))
	copy(out, m.requests)
	return out
}

// FetchPrices returns the canned quotes for the requested symbols only.
func (m *MockGateway) FetchPrices(ctx context.Context, symbols []string) (PriceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, append([]string(nil), symbols...))
	if m.err != nil {
		return nil, m.err
	}
	snapshot := make(PriceSnapshot, len(symbols)*2)
	for _, symbol := range dedupeSymbols(symbols) {
		if p, ok := m.prices.Ask(symbol); ok {
			snapshot.Set(symbol, SideAsk, p)
		}
		if p, ok := m.prices.Bid(symbol); ok {
			snapshot.Set(symbol, SideBid, p)
		}
	}
	return snapshot, nil
}
