package goalseek

import (
	"fmt"
	"math"

	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/rollover"
)

// denominatorEpsilon guards the closed-form improvement division.
const denominatorEpsilon = 1e-6

// profitStep is the multiplier scale of the profit-target search.
const profitStep = 100

// ProfitResult extends Result with the price-improvement factor that was
// applied and the adjusted snapshot the quantity search ran against.
type ProfitResult struct {
	Result
	ImprovementFactor float64                  `json:"improvement_factor"`
	FuturePrices      marketdata.PriceSnapshot `json:"-"`
}

// ProfitRequest bundles the inputs of a profit-target search.
type ProfitRequest struct {
	TargetProfit float64
	TargetFlow   float64
	Base         rollover.Quantities
	Unwind       models.UnwindQuantities
	Position     models.Position
	Pair         models.OptionPair
	Prices       marketdata.PriceSnapshot
}

// SolveTargetProfit sizes a rollover so that it banks TargetProfit on the
// unwound fraction of the position and still hits TargetFlow on D+2.
//
// The profit side is closed-form: the unwind proceeds required to realize
// the target profit over the unwound share of the assembly cost determine
// a uniform price-improvement factor (bids up, asks down). The quantity
// side then runs the secant search against the improved snapshot.
func SolveTargetProfit(req ProfitRequest, cfg Config) (ProfitResult, error) {
	if req.Unwind.Total() == 0 {
		return ProfitResult{}, fmt.Errorf("%w: unwind quantities are all zero", models.ErrInvalidInput)
	}
	if err := req.Unwind.CheckAgainst(req.Position); err != nil {
		return ProfitResult{}, err
	}

	factor, err := improvementFactor(req)
	if err != nil {
		return ProfitResult{}, err
	}
	future := req.Prices.AdjustForImprovement(factor)

	obj := func(legs rollover.Quantities) (float64, error) {
		flow, err := rollover.D2Flow(legs, req.Unwind, future, req.Position, req.Pair)
		if err != nil {
			return 0, err
		}
		return flow.Total, nil
	}

	cfg = cfg.withDefaults()
	cfg.Step = profitStep
	res, err := SolveQuantity(obj, req.TargetFlow, req.Base, cfg)
	if err != nil {
		return ProfitResult{}, err
	}
	return ProfitResult{Result: res, ImprovementFactor: factor, FuturePrices: future}, nil
}

// improvementFactor derives the uniform bid/ask adjustment that makes the
// unwind proceeds cover the unwound share of the assembly cost plus the
// target profit.
func improvementFactor(req ProfitRequest) (float64, error) {
	pos := req.Position

	propAsset, propCall, propPut := 0.0, 0.0, 0.0
	if pos.Asset.Quantity > 0 {
		propAsset = float64(req.Unwind.AssetQty) / float64(pos.Asset.Quantity)
	}
	if pos.Call.Quantity > 0 {
		propCall = float64(req.Unwind.CallQty) / float64(pos.Call.Quantity)
	}
	if pos.Put.Quantity > 0 {
		propPut = float64(req.Unwind.PutQty) / float64(pos.Put.Quantity)
	}

	partialCost := -(pos.Asset.AvgPrice*float64(pos.Asset.Quantity))*propAsset +
		(pos.Call.AvgPrice*float64(pos.Call.Quantity))*propCall -
		(pos.Put.AvgPrice*float64(pos.Put.Quantity))*propPut
	requiredProceeds := req.TargetProfit - partialCost

	assetBid, okA := req.Prices.Bid(pos.Tickers.Asset)
	callAsk, okC := req.Prices.Ask(pos.Tickers.Call)
	putBid, okP := req.Prices.Bid(pos.Tickers.Put)
	if !okA || !okC || !okP {
		return 0, fmt.Errorf("%w: unwind quotes for %s", rollover.ErrMissingQuote, pos.Tickers.Asset)
	}

	currentProceeds := assetBid*float64(req.Unwind.AssetQty) -
		callAsk*float64(req.Unwind.CallQty) +
		putBid*float64(req.Unwind.PutQty)
	denominator := assetBid*float64(req.Unwind.AssetQty) +
		callAsk*float64(req.Unwind.CallQty) +
		putBid*float64(req.Unwind.PutQty)
	if math.Abs(denominator) < denominatorEpsilon {
		return 0, fmt.Errorf("%w: zero improvement denominator", ErrDegenerateObjective)
	}

	return (requiredProceeds - currentProceeds) / denominator, nil
}
