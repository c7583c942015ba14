// Package models defines the core domain types for the collar rollover
// engine: the three-leg position, option pair candidates and the transient
// sizing inputs used by the calculators.
package models

import (
	"fmt"
	"time"
)

// Side indicates whether a leg is held long or short.
type Side string

const (
	// SideLong marks a leg that is owned (stock, protective put).
	SideLong Side = "long"
	// SideShort marks a leg that was written (covered call).
	SideShort Side = "short"
)

// Valid returns true if the Side is one of the defined constants.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Leg is one instrument within the three-part structure. Quantity is an
// unsigned magnitude; the direction lives in Side so that no call site
// needs ad hoc sign flips.
type Leg struct {
	Side     Side    `json:"side"`
	Quantity int     `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// SignedQuantity returns the quantity with its directional sign applied.
func (l Leg) SignedQuantity() int {
	if l.Side == SideShort {
		return -l.Quantity
	}
	return l.Quantity
}

// Tickers holds the symbols of the three legs. A non-empty position always
// has a non-empty Asset symbol.
type Tickers struct {
	Asset string `json:"asset"`
	Call  string `json:"call"`
	Put   string `json:"put"`
}

// Symbols returns the non-empty ticker symbols.
func (t Tickers) Symbols() []string {
	out := make([]string, 0, 3)
	for _, s := range []string{t.Asset, t.Call, t.Put} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Position represents a held collar structure: long stock, short call and
// long put at a common strike and expiration. The zero value is the empty
// position.
type Position struct {
	ID         string    `json:"id,omitempty"`
	Tickers    Tickers   `json:"tickers"`
	Expiration time.Time `json:"expiration"`
	Strike     float64   `json:"strike"`
	Asset      Leg       `json:"asset"`
	Call       Leg       `json:"call"`
	Put        Leg       `json:"put"`
}

// Empty reports whether the position holds nothing. A position with all
// three leg quantities at zero is equivalent to absence.
func (p Position) Empty() bool {
	return p.Asset.Quantity == 0 && p.Call.Quantity == 0 && p.Put.Quantity == 0
}

// Validate checks the structural invariants of a non-empty position.
func (p Position) Validate() error {
	if p.Empty() {
		return nil
	}
	if p.Tickers.Asset == "" {
		return fmt.Errorf("position %s: non-empty position requires an asset ticker", p.ID)
	}
	for name, leg := range map[string]Leg{"asset": p.Asset, "call": p.Call, "put": p.Put} {
		if leg.Quantity < 0 {
			return fmt.Errorf("position %s: %s quantity must be a magnitude, got %d", p.ID, name, leg.Quantity)
		}
		if leg.AvgPrice < 0 {
			return fmt.Errorf("position %s: %s average price cannot be negative, got %.4f", p.ID, name, leg.AvgPrice)
		}
		if leg.Quantity > 0 && !leg.Side.Valid() {
			return fmt.Errorf("position %s: %s side must be long or short", p.ID, name)
		}
	}
	return nil
}

// AssemblyCost returns the net premium paid to put the structure on:
// stock bought (outflow), call written (inflow), put bought (outflow).
func (p Position) AssemblyCost() float64 {
	return -(p.Asset.AvgPrice * float64(p.Asset.Quantity)) +
		(p.Call.AvgPrice * float64(p.Call.Quantity)) -
		(p.Put.AvgPrice * float64(p.Put.Quantity))
}

// CapitalAtRisk returns the stock leg's notional at its average price.
func (p Position) CapitalAtRisk() float64 {
	return p.Asset.AvgPrice * float64(p.Asset.Quantity)
}

// DaysToExpiration returns the calendar days between now and expiration,
// floored at zero.
func (p Position) DaysToExpiration(now time.Time) int {
	if p.Expiration.IsZero() {
		return 0
	}
	days := int(p.Expiration.UTC().Truncate(24*time.Hour).Sub(now.UTC().Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// mergeLeg blends two legs of the same convention by quantity-weighted
// average price. A zero combined quantity resets the average price to 0.
func mergeLeg(a, b Leg, side Side) Leg {
	totalQty := a.Quantity + b.Quantity
	if totalQty == 0 {
		return Leg{Side: side}
	}
	avg := (a.AvgPrice*float64(a.Quantity) + b.AvgPrice*float64(b.Quantity)) / float64(totalQty)
	return Leg{Side: side, Quantity: totalQty, AvgPrice: avg}
}

// Combine merges two positions into a blended read-only view using the
// per-leg quantity-weighted averaging rule. If one side is empty the other
// is returned unchanged. Combine never persists its result; callers that
// care about cross-underlying blends should compare Tickers.Asset first.
func Combine(a, b Position) Position {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}

	combined := Position{
		Tickers:    a.Tickers,
		Expiration: a.Expiration,
		Strike:     a.Strike,
	}
	if combined.Tickers.Asset == "" {
		combined.Tickers = b.Tickers
	}
	if combined.Expiration.IsZero() {
		combined.Expiration = b.Expiration
	}
	if combined.Strike == 0 {
		combined.Strike = b.Strike
	}

	combined.Asset = mergeLeg(a.Asset, b.Asset, SideLong)
	combined.Call = mergeLeg(a.Call, b.Call, SideShort)
	combined.Put = mergeLeg(a.Put, b.Put, SideLong)
	return combined
}

// Assemble folds a new fill into an existing position. An empty existing
// position becomes the new legs directly; otherwise each leg's average
// price is re-weighted across old and new quantities and the strike,
// expiration and option tickers move to the new pair's values. Assemble
// refuses cross-underlying merges with ErrAssetMismatch and leaves the
// existing position untouched.
func Assemble(existing, add Position) (Position, error) {
	if add.Empty() {
		return existing, nil
	}
	if existing.Empty() {
		return add, nil
	}
	if existing.Tickers.Asset != add.Tickers.Asset {
		return existing, fmt.Errorf("%w: position holds %s, new legs are %s",
			ErrAssetMismatch, existing.Tickers.Asset, add.Tickers.Asset)
	}

	merged := Position{
		ID:         existing.ID,
		Tickers:    add.Tickers,
		Expiration: add.Expiration,
		Strike:     add.Strike,
		Asset:      mergeLeg(existing.Asset, add.Asset, SideLong),
		Call:       mergeLeg(existing.Call, add.Call, SideShort),
		Put:        mergeLeg(existing.Put, add.Put, SideLong),
	}
	return merged, nil
}

// Reset returns the empty position.
func Reset() Position {
	return Position{}
}
