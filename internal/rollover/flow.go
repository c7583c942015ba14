// Package rollover computes the settlement cash flows of rolling a collar
// from its current option pair into a candidate pair: the options net flow
// settling on D+1 and the cumulative D+2 flow including the stock leg.
package rollover

import (
	"errors"
	"fmt"
	"math"

	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/models"
)

// ErrMissingQuote marks a required bid/ask that was absent from the
// snapshot. The calculation is unavailable for this cycle; no retry.
var ErrMissingQuote = errors.New("missing quote")

// Quantities is the sizing of the new assembly's legs. Values are floats
// because the goal-seek solver reconstructs them from a fractional
// multiplier each iteration; lot rounding happens only on final results.
type Quantities struct {
	AssetQty float64 `json:"asset_qty"`
	CallQty  float64 `json:"call_qty"`
	PutQty   float64 `json:"put_qty"`
}

// Total returns the summed leg quantity.
func (q Quantities) Total() float64 {
	return q.AssetQty + q.CallQty + q.PutQty
}

// Action is the direction of a single rollover operation.
type Action string

const (
	ActionBuy  Action = "B"
	ActionSell Action = "S"
)

// Line is one operation of the rollover with its financial impact.
// Financial is signed: buying costs money (negative), selling earns it.
type Line struct {
	Ticker    string  `json:"ticker"`
	Action    Action  `json:"action"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Financial float64 `json:"financial"`
}

// Flow is the full settlement breakdown of a rollover.
type Flow struct {
	Lines   []Line  `json:"lines"`
	Options float64 `json:"options"` // net options flow, settles D+1
	Stock   float64 `json:"stock"`   // net stock flow
	Total   float64 `json:"total"`   // cumulative D+2 flow
}

// D2Flow computes the two-stage settlement flow of unwinding part of the
// held position and assembling the new pair at the snapshot's quotes.
//
// Six quotes are required: current-call ask, new-call bid, current-put
// bid, new-put ask, and the underlying's ask and bid. Any absent quote
// makes the whole calculation unavailable.
func D2Flow(assembly Quantities, unwind models.UnwindQuantities, prices marketdata.PriceSnapshot, pos models.Position, pair models.OptionPair) (Flow, error) {
	if pos.Tickers.Asset != pair.Asset {
		return Flow{}, fmt.Errorf("%w: position %s, pair %s", models.ErrAssetMismatch, pos.Tickers.Asset, pair.Asset)
	}

	curCallAsk, err := require(prices, pos.Tickers.Call, marketdata.SideAsk)
	if err != nil {
		return Flow{}, err
	}
	newCallBid, err := require(prices, pair.CallTicker, marketdata.SideBid)
	if err != nil {
		return Flow{}, err
	}
	curPutBid, err := require(prices, pos.Tickers.Put, marketdata.SideBid)
	if err != nil {
		return Flow{}, err
	}
	newPutAsk, err := require(prices, pair.PutTicker, marketdata.SideAsk)
	if err != nil {
		return Flow{}, err
	}
	assetAsk, err := require(prices, pos.Tickers.Asset, marketdata.SideAsk)
	if err != nil {
		return Flow{}, err
	}
	assetBid, err := require(prices, pos.Tickers.Asset, marketdata.SideBid)
	if err != nil {
		return Flow{}, err
	}

	buyBackCall := -float64(unwind.CallQty) * curCallAsk
	sellNewCall := assembly.CallQty * newCallBid
	sellCurPut := float64(unwind.PutQty) * curPutBid
	buyNewPut := -assembly.PutQty * newPutAsk

	flow := Flow{
		Lines: []Line{
			{Ticker: pos.Tickers.Call, Action: ActionBuy, Quantity: float64(unwind.CallQty), Price: curCallAsk, Financial: buyBackCall},
			{Ticker: pair.CallTicker, Action: ActionSell, Quantity: assembly.CallQty, Price: newCallBid, Financial: sellNewCall},
			{Ticker: pos.Tickers.Put, Action: ActionSell, Quantity: float64(unwind.PutQty), Price: curPutBid, Financial: sellCurPut},
			{Ticker: pair.PutTicker, Action: ActionBuy, Quantity: assembly.PutQty, Price: newPutAsk, Financial: buyNewPut},
		},
		Options: buyBackCall + sellNewCall + sellCurPut + buyNewPut,
	}

	netAssetChange := assembly.AssetQty - float64(unwind.AssetQty)
	switch {
	case netAssetChange > 0:
		flow.Stock = -netAssetChange * assetAsk
		flow.Lines = append(flow.Lines, Line{
			Ticker: pos.Tickers.Asset, Action: ActionBuy,
			Quantity: netAssetChange, Price: assetAsk, Financial: flow.Stock,
		})
	case netAssetChange < 0:
		flow.Stock = math.Abs(netAssetChange) * assetBid
		flow.Lines = append(flow.Lines, Line{
			Ticker: pos.Tickers.Asset, Action: ActionSell,
			Quantity: math.Abs(netAssetChange), Price: assetBid, Financial: flow.Stock,
		})
	}

	flow.Total = flow.Options + flow.Stock
	return flow, nil
}

func require(prices marketdata.PriceSnapshot, symbol string, side marketdata.QuoteSide) (float64, error) {
	var (
		v  float64
		ok bool
	)
	if side == marketdata.SideAsk {
		v, ok = prices.Ask(symbol)
	} else {
		v, ok = prices.Bid(symbol)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s %s", ErrMissingQuote, symbol, side)
	}
	return v, nil
}
