// Package marketdata provides access to live bid/ask quotes. It defines
// the gateway contract the calculators depend on, the quote snapshot type,
// an HTTP client for the terminal bridge, and a circuit-breaker decorator.
package marketdata

import (
	"fmt"
	"strings"
)

// QuoteSide selects which side of the book a snapshot key refers to.
type QuoteSide string

const (
	// SideAsk is the price at which the market sells.
	SideAsk QuoteSide = "ask"
	// SideBid is the price at which the market buys.
	SideBid QuoteSide = "bid"
)

// PriceSnapshot maps "{symbol}_{side}" to a positive price. A symbol/side
// with no liquidity is simply absent; calculators treat absence as
// "calculation unavailable", never as zero.
type PriceSnapshot map[string]float64

// Key builds the snapshot key for a symbol and side.
func Key(symbol string, side QuoteSide) string {
	return fmt.Sprintf("%s_%s", symbol, side)
}

// Ask returns the ask price for symbol and whether it is present.
func (s PriceSnapshot) Ask(symbol string) (float64, bool) {
	p, ok := s[Key(symbol, SideAsk)]
	return p, ok
}

// Bid returns the bid price for symbol and whether it is present.
func (s PriceSnapshot) Bid(symbol string) (float64, bool) {
	p, ok := s[Key(symbol, SideBid)]
	return p, ok
}

// Set stores a price for a symbol and side. Non-positive prices are
// dropped so that absence semantics hold.
func (s PriceSnapshot) Set(symbol string, side QuoteSide, price float64) {
	if price > 0 {
		s[Key(symbol, side)] = price
	}
}

// AdjustForImprovement returns a copy with every bid scaled up and every
// ask scaled down by the same factor. It models uniform price improvement
// when simulating a future fill; absent quotes stay absent.
func (s PriceSnapshot) AdjustForImprovement(factor float64) PriceSnapshot {
	adjusted := make(PriceSnapshot, len(s))
	for key, price := range s {
		if strings.HasSuffix(key, "_"+string(SideBid)) {
			adjusted[key] = price * (1 + factor)
		} else {
			adjusted[key] = price * (1 - factor)
		}
	}
	return adjusted
}
