package engine

import (
	"context"
	"time"

	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/payout"
	"github.com/vectorprofit/collarroll/internal/rollover"
)

// PayoutView is a computed curve plus its normalization mode and the
// live-price marker.
type PayoutView struct {
	Points     []payout.Point     `json:"points"`
	Mode       payout.Mode        `json:"mode"`
	Annotation *payout.Annotation `json:"annotation,omitempty"`
}

// Report is one consistent recompute over a single quote snapshot. GET
// consumers read the last report; a new recompute replaces it whole.
type Report struct {
	View      string             `json:"view"`
	Position  models.Position    `json:"position"`
	Pair      *models.OptionPair `json:"pair,omitempty"`
	Inputs    Inputs             `json:"inputs"`
	Valuation rollover.Valuation `json:"valuation"`

	Summary       *rollover.Summary `json:"summary,omitempty"`
	Flow          *rollover.Flow    `json:"flow,omitempty"`
	Basket        []string          `json:"basket,omitempty"`
	TargetCost    float64           `json:"target_plus_cost"`
	AssemblyCurve *PayoutView       `json:"assembly_curve,omitempty"`
	PositionCurve *PayoutView       `json:"position_curve,omitempty"`

	Warnings  []string  `json:"warnings,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Report returns a copy of the last computed report.
func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report
}

// recompute is the single pipeline behind every debounced trigger: one
// quote fetch, then every calculator against that same snapshot.
func (e *Engine) recompute(ctx context.Context) {
	e.mu.Lock()
	view := e.view
	pair := e.pair
	in := e.inputs
	e.mu.Unlock()

	rep := Report{
		View:      string(view),
		Pair:      pair,
		Inputs:    in,
		UpdatedAt: time.Now(),
	}

	pos, err := e.loadView(view)
	if err != nil {
		e.logger.WithError(err).Error("loading position view")
		rep.Warnings = append(rep.Warnings, err.Error())
		e.setReport(rep)
		return
	}
	rep.Position = pos
	rep.TargetCost = rollover.TargetPlusCost(pos, in.TargetProfit)

	symbols := symbolsFor(pos, pair)
	var prices marketdata.PriceSnapshot
	if len(symbols) > 0 {
		prices, err = e.fetch(ctx, symbols)
		if err != nil {
			e.logger.WithError(err).Warn("quote fetch failed, calculations unavailable")
			rep.Warnings = append(rep.Warnings, err.Error())
			prices = marketdata.PriceSnapshot{}
		}
	} else {
		prices = marketdata.PriceSnapshot{}
	}

	now := time.Now()
	rep.Valuation = rollover.Valuate(pos, prices, now)

	if pair != nil {
		summary := rollover.BuildSummary(in.Assembly, *pair, prices, now)
		rep.Summary = &summary
		rep.AssemblyCurve = e.buildCurve(in.Assembly, prices, pair.Asset)

		if !pos.Empty() && pos.Tickers.Asset == pair.Asset {
			flow, err := rollover.D2Flow(assemblyQuantities(in.Assembly), in.Unwind, prices, pos, *pair)
			if err != nil {
				rep.Warnings = append(rep.Warnings, err.Error())
			} else {
				rep.Flow = &flow
			}
			basket, err := rollover.Basket(assemblyQuantities(in.Assembly), in.Unwind, pos, *pair)
			if err == nil {
				rep.Basket = basket
			}
		}
	}

	if !pos.Empty() {
		rep.PositionCurve = e.buildCurve(positionParams(pos), prices, pos.Tickers.Asset)
	}

	e.setReport(rep)
	e.logger.WithField("view", view).Debug("recompute finished")
}

func (e *Engine) setReport(rep Report) {
	e.mu.Lock()
	e.report = rep
	e.mu.Unlock()
}

// buildCurve samples and normalizes one payout curve and pins the
// live-price marker when the underlying's ask is quoted.
func (e *Engine) buildCurve(params models.StrategyParams, prices marketdata.PriceSnapshot, asset string) *PayoutView {
	if params.AssetPrice <= 0 {
		return nil
	}
	curve := payout.Compute(params, e.cfg.PayoutRange)
	points, mode := curve.Normalized()
	view := &PayoutView{Points: points, Mode: mode}
	if live, ok := prices.Ask(asset); ok {
		ann := payout.Annotate(params, live)
		view.Annotation = &ann
	}
	return view
}

// positionParams re-expresses a held position as simulation parameters.
func positionParams(pos models.Position) models.StrategyParams {
	return models.StrategyParams{
		AssetPrice: pos.Asset.AvgPrice,
		AssetQty:   pos.Asset.Quantity,
		CallPrice:  pos.Call.AvgPrice,
		CallQty:    pos.Call.Quantity,
		PutPrice:   pos.Put.AvgPrice,
		PutQty:     pos.Put.Quantity,
		Strike:     pos.Strike,
	}
}
