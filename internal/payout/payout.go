// Package payout computes the piecewise-linear profit/loss curve of a
// collar structure at expiration over a range of underlying price changes.
package payout

import (
	"math"

	"github.com/vectorprofit/collarroll/internal/models"
)

// Default curve range: ±30% of the reference price, 250 samples.
const (
	DefaultMinRatio = -0.30
	DefaultMaxRatio = 0.30
	DefaultSamples  = 250
)

// minCapitalBase is the threshold below which the normalization base is
// considered degenerate.
const minCapitalBase = 0.01

// Mode says how curve values should be expressed.
type Mode string

const (
	// ModePercentOfCapital expresses PnL as a fraction of the capital base.
	ModePercentOfCapital Mode = "percent"
	// ModeAbsolute expresses PnL in raw currency units.
	ModeAbsolute Mode = "absolute"
)

// Range describes the sampled price-change interval.
type Range struct {
	Min     float64
	Max     float64
	Samples int
}

// DefaultRange returns the standard ±30% / 250-sample range.
func DefaultRange() Range {
	return Range{Min: DefaultMinRatio, Max: DefaultMaxRatio, Samples: DefaultSamples}
}

// Point is one sample of the payout curve.
type Point struct {
	Ratio float64 `json:"ratio"` // price change vs. the reference price
	PnL   float64 `json:"pnl"`   // currency units
}

// Curve is a computed payout curve plus the parameters that produced it.
type Curve struct {
	Params models.StrategyParams `json:"params"`
	Points []Point               `json:"points"`
}

// Annotation marks the curve value at a live market price.
type Annotation struct {
	Price      float64 `json:"price"`
	Ratio      float64 `json:"ratio"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"` // meaningful only in percent mode
	Mode       Mode    `json:"mode"`
}

// PnLAt evaluates the expiration PnL of the structure at stock price s:
// stock mark-to-market, short-call payoff (premium received minus
// intrinsic value owed), long-put payoff (intrinsic value received minus
// premium paid).
func PnLAt(p models.StrategyParams, s float64) float64 {
	stock := (s - p.AssetPrice) * float64(p.AssetQty)
	call := (p.CallPrice - math.Max(0, s-p.Strike)) * float64(p.CallQty)
	put := (math.Max(0, p.Strike-s) - p.PutPrice) * float64(p.PutQty)
	return stock + call + put
}

// Compute samples the payout curve across the range. An empty range or a
// zero-sample request yields an empty curve; validation of the params is
// the caller's responsibility.
func Compute(params models.StrategyParams, rng Range) Curve {
	curve := Curve{Params: params}
	if rng.Samples <= 0 || rng.Max < rng.Min {
		return curve
	}
	curve.Points = make([]Point, rng.Samples)
	step := 0.0
	if rng.Samples > 1 {
		step = (rng.Max - rng.Min) / float64(rng.Samples-1)
	}
	for i := range curve.Points {
		ratio := rng.Min + step*float64(i)
		price := params.AssetPrice * (1 + ratio)
		curve.Points[i] = Point{Ratio: ratio, PnL: PnLAt(params, price)}
	}
	return curve
}

// CapitalBase returns the normalization base and the mode it implies.
// The primary base is |asset·qty − call·qty + put·qty|; when that is
// degenerate the stock notional is used, and when that too is ~0 the
// curve stays in raw currency.
func CapitalBase(p models.StrategyParams) (float64, Mode) {
	base := math.Abs(p.AssetPrice*float64(p.AssetQty) -
		p.CallPrice*float64(p.CallQty) +
		p.PutPrice*float64(p.PutQty))
	if base < minCapitalBase {
		base = p.AssetPrice * float64(p.AssetQty)
	}
	if base <= minCapitalBase {
		return 0, ModeAbsolute
	}
	return base, ModePercentOfCapital
}

// Normalized returns the curve's values divided by the capital base, or
// the raw values when the base is degenerate, together with the mode used.
func (c Curve) Normalized() ([]Point, Mode) {
	base, mode := CapitalBase(c.Params)
	if mode == ModeAbsolute {
		return c.Points, ModeAbsolute
	}
	out := make([]Point, len(c.Points))
	for i, pt := range c.Points {
		out[i] = Point{Ratio: pt.Ratio, PnL: pt.PnL / base}
	}
	return out, ModePercentOfCapital
}

// Annotate evaluates the curve formula at a live price, for the marker
// the presentation layer draws on top of the curve.
func Annotate(params models.StrategyParams, livePrice float64) Annotation {
	ann := Annotation{Price: livePrice, PnL: PnLAt(params, livePrice), Mode: ModeAbsolute}
	if params.AssetPrice != 0 {
		ann.Ratio = (livePrice - params.AssetPrice) / params.AssetPrice
	}
	if base, mode := CapitalBase(params); mode == ModePercentOfCapital {
		ann.Mode = ModePercentOfCapital
		ann.PnLPercent = ann.PnL / base * 100
	}
	return ann
}
