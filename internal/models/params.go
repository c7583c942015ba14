package models

import "fmt"

// StrategyParams is the transient assembly sizing used for simulation.
// It is recomputed from user input before every calculation. Quantities may
// be negative to express signed adjustments in rollover net calculations;
// prices must be non-negative.
type StrategyParams struct {
	AssetPrice float64 `json:"asset_price"`
	AssetQty   int     `json:"asset_qty"`
	CallPrice  float64 `json:"call_price"`
	CallQty    int     `json:"call_qty"`
	PutPrice   float64 `json:"put_price"`
	PutQty     int     `json:"put_qty"`
	Strike     float64 `json:"strike"`
}

// Validate checks the price sign constraints.
func (p StrategyParams) Validate() error {
	if p.AssetPrice < 0 || p.CallPrice < 0 || p.PutPrice < 0 {
		return fmt.Errorf("%w: prices must be non-negative", ErrInvalidInput)
	}
	return nil
}

// TotalQuantity returns the sum of the three leg quantities. It is the
// goal-seek solver's initial multiplier guess.
func (p StrategyParams) TotalQuantity() int {
	return p.AssetQty + p.CallQty + p.PutQty
}

// ToPosition converts the params into position legs against the given pair,
// using the collar side conventions.
func (p StrategyParams) ToPosition(pair OptionPair) Position {
	return Position{
		Tickers: Tickers{
			Asset: pair.Asset,
			Call:  pair.CallTicker,
			Put:   pair.PutTicker,
		},
		Expiration: pair.Expiration,
		Strike:     p.Strike,
		Asset:      Leg{Side: SideLong, Quantity: p.AssetQty, AvgPrice: p.AssetPrice},
		Call:       Leg{Side: SideShort, Quantity: p.CallQty, AvgPrice: p.CallPrice},
		Put:        Leg{Side: SideLong, Quantity: p.PutQty, AvgPrice: p.PutPrice},
	}
}

// UnwindQuantities describes how much of each held leg is being closed in
// a rollover. All quantities are non-negative magnitudes; the call leg is
// compared against the held position by absolute value.
type UnwindQuantities struct {
	AssetQty int `json:"asset_qty"`
	CallQty  int `json:"call_qty"`
	PutQty   int `json:"put_qty"`
}

// Validate checks the non-negativity constraint.
func (u UnwindQuantities) Validate() error {
	if u.AssetQty < 0 || u.CallQty < 0 || u.PutQty < 0 {
		return fmt.Errorf("%w: unwind quantities must be non-negative", ErrInvalidInput)
	}
	return nil
}

// Total returns the summed unwind quantity across legs.
func (u UnwindQuantities) Total() int {
	return u.AssetQty + u.CallQty + u.PutQty
}

// CheckAgainst verifies the unwind does not exceed the held position.
// It must pass before any market data is touched.
func (u UnwindQuantities) CheckAgainst(pos Position) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.AssetQty > pos.Asset.Quantity {
		return fmt.Errorf("%w: asset %d > %d", ErrUnwindExceedsPosition, u.AssetQty, pos.Asset.Quantity)
	}
	if u.CallQty > pos.Call.Quantity {
		return fmt.Errorf("%w: call %d > %d", ErrUnwindExceedsPosition, u.CallQty, pos.Call.Quantity)
	}
	if u.PutQty > pos.Put.Quantity {
		return fmt.Errorf("%w: put %d > %d", ErrUnwindExceedsPosition, u.PutQty, pos.Put.Quantity)
	}
	return nil
}
