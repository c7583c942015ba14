// Package mock provides a simulated quote source for paper mode, so the
// tool stays fully usable without a terminal bridge.
package mock

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"sync"

	"github.com/vectorprofit/collarroll/internal/marketdata"
)

// secureFloat64 generates a cryptographically secure random float64
// between 0 and 1.
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// QuoteSimulator serves drifting bid/ask quotes anchored at configured
// reference prices. Symbols without an anchor are left out of the
// snapshot, matching how a real gateway reports unavailable quotes.
type QuoteSimulator struct {
	mu      sync.Mutex
	prices  map[string]float64
	spread  float64
	maxMove float64
}

var _ marketdata.Gateway = (*QuoteSimulator)(nil)

// NewQuoteSimulator creates a simulator seeded with per-symbol reference
// prices. Spread is half a percent, drift up to a quarter percent per
// fetch.
func NewQuoteSimulator(anchors map[string]float64) *QuoteSimulator {
	prices := make(map[string]float64, len(anchors))
	for symbol, price := range anchors {
		if price > 0 {
			prices[symbol] = price
		}
	}
	return &QuoteSimulator{
		prices:  prices,
		spread:  0.005,
		maxMove: 0.0025,
	}
}

// FetchPrices walks each known symbol a small random step and quotes a
// symmetric spread around the new mid.
func (s *QuoteSimulator) FetchPrices(ctx context.Context, symbols []string) (marketdata.PriceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(marketdata.PriceSnapshot, len(symbols)*2)
	for _, symbol := range symbols {
		mid, ok := s.prices[symbol]
		if !ok {
			continue
		}

		step := (secureFloat64() - 0.5) * 2 * s.maxMove
		mid = math.Max(0.01, mid*(1+step))
		s.prices[symbol] = mid

		half := mid * s.spread / 2
		snapshot.Set(symbol, marketdata.SideBid, mid-half)
		snapshot.Set(symbol, marketdata.SideAsk, mid+half)
	}
	return snapshot, nil
}

// Seed registers or moves a reference price at runtime.
func (s *QuoteSimulator) Seed(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}
