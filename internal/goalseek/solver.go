// Package goalseek searches for the assembly sizing that drives a
// rollover's cumulative D+2 flow to a caller-given target. The search is
// a damped secant iteration on a scalar multiplier; the three legs keep
// the ratio of the caller's base quantities throughout.
package goalseek

import (
	"errors"
	"fmt"
	"math"

	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/rollover"
	"github.com/vectorprofit/collarroll/internal/util"
)

// ErrDegenerateObjective marks an objective the search cannot make
// progress against.
var ErrDegenerateObjective = errors.New("degenerate objective")

// gradientEpsilon is the flatness threshold below which the secant update
// would blow up.
const gradientEpsilon = 1e-9

// Objective evaluates the target metric at a candidate sizing. An error
// (typically a missing quote) aborts the whole search with no partial
// answer.
type Objective func(legs rollover.Quantities) (float64, error)

// Outcome classifies how a search ended.
type Outcome string

const (
	// OutcomeConverged means the objective reached the target within
	// tolerance.
	OutcomeConverged Outcome = "converged"
	// OutcomeMaxIterations means the iteration budget ran out; the result
	// carries the last multiplier as a best effort.
	OutcomeMaxIterations Outcome = "max_iterations"
	// OutcomeNoSolution means the objective went flat and no sizing can
	// reach the target.
	OutcomeNoSolution Outcome = "no_solution"
)

// Config tunes the secant iteration. Zero values take the defaults.
type Config struct {
	Tolerance     float64 // absolute, in currency units
	MaxIterations int
	Step          float64 // finite-difference probe and update scale
	Damping       float64
	LotSize       int
}

// DefaultConfig returns the standard tuning for the flow search.
func DefaultConfig() Config {
	return Config{
		Tolerance:     50,
		MaxIterations: 20,
		Step:          1,
		Damping:       0.8,
		LotSize:       100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.Damping <= 0 {
		c.Damping = d.Damping
	}
	if c.LotSize <= 0 {
		c.LotSize = d.LotSize
	}
	return c
}

// Result is the outcome of a search: the final multiplier and the leg
// quantities it implies, rounded to the market's lot size.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	Multiplier float64 `json:"multiplier"`
	Iterations int     `json:"iterations"`
	AssetQty   int     `json:"asset_qty"`
	CallQty    int     `json:"call_qty"`
	PutQty     int     `json:"put_qty"`
}

// Quantities returns the rounded sizing as a rollover sizing value.
func (r Result) Quantities() rollover.Quantities {
	return rollover.Quantities{
		AssetQty: float64(r.AssetQty),
		CallQty:  float64(r.CallQty),
		PutQty:   float64(r.PutQty),
	}
}

// SolveQuantity runs the secant search for a multiplier x such that
// obj(x·ratios) hits target within tolerance. The initial guess is the
// base total quantity; x is clamped at zero. Objective evaluation errors
// abort the search. A flat objective ends with OutcomeNoSolution and an
// exhausted budget with OutcomeMaxIterations; both still report the last
// multiplier.
func SolveQuantity(obj Objective, target float64, base rollover.Quantities, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()

	total := base.Total()
	if total <= 0 {
		return Result{}, fmt.Errorf("%w: base quantities sum to zero", models.ErrInvalidInput)
	}
	ratioAsset := base.AssetQty / total
	ratioCall := base.CallQty / total
	ratioPut := base.PutQty / total
	legsAt := func(x float64) rollover.Quantities {
		return rollover.Quantities{
			AssetQty: x * ratioAsset,
			CallQty:  x * ratioCall,
			PutQty:   x * ratioPut,
		}
	}

	x := total
	res := Result{Outcome: OutcomeMaxIterations}
	for i := 0; i < cfg.MaxIterations; i++ {
		res.Iterations = i + 1

		current, err := obj(legsAt(x))
		if err != nil {
			return Result{}, err
		}
		errVal := target - current
		if math.Abs(errVal) < cfg.Tolerance {
			res.Outcome = OutcomeConverged
			break
		}

		probe, err := obj(legsAt(x + cfg.Step))
		if err != nil {
			return Result{}, err
		}
		gradient := probe - current
		if math.Abs(gradient) < gradientEpsilon {
			res.Outcome = OutcomeNoSolution
			break
		}

		x += cfg.Damping * cfg.Step * (errVal / gradient)
		if x < 0 {
			x = 0
		}
	}

	res.Multiplier = x
	res.AssetQty = util.RoundToLot(x*ratioAsset, cfg.LotSize)
	res.CallQty = util.RoundToLot(x*ratioCall, cfg.LotSize)
	res.PutQty = util.RoundToLot(x*ratioPut, cfg.LotSize)
	return res, nil
}
