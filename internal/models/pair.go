package models

import "time"

// OptionPair is a candidate call/put pair on a single underlying and
// expiration, sourced from the filtered option chain. It is immutable once
// selected for a calculation.
type OptionPair struct {
	Asset      string    `json:"asset"`
	CallTicker string    `json:"call_ticker"`
	PutTicker  string    `json:"put_ticker"`
	Strike     float64   `json:"strike"`
	Expiration time.Time `json:"expiration"`
}

// Symbols returns the pair's non-empty symbols, underlying first.
func (p OptionPair) Symbols() []string {
	out := make([]string, 0, 3)
	for _, s := range []string{p.Asset, p.CallTicker, p.PutTicker} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Complete reports whether all three symbols and the strike are present.
func (p OptionPair) Complete() bool {
	return p.Asset != "" && p.CallTicker != "" && p.PutTicker != "" && p.Strike > 0
}
