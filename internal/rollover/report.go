package rollover

import (
	"fmt"
	"math"
	"time"

	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/util"
)

// Breakeven is one of the structure's breakeven points. Valid is false
// when the defining denominator is zero (no crossing on that side).
type Breakeven struct {
	Price   float64 `json:"price"`
	Percent float64 `json:"percent"` // distance from spot, in percent
	Valid   bool    `json:"valid"`
}

// Summary carries the assembly metrics shown next to a candidate pair:
// leg weights, the flat-rate carry, breakevens, entry/exit spreads and
// the settlement flows of assembling at current quotes.
type Summary struct {
	Asset        string    `json:"asset"`
	CallTicker   string    `json:"call_ticker"`
	PutTicker    string    `json:"put_ticker"`
	Expiration   time.Time `json:"expiration"`
	CalendarDays int       `json:"calendar_days"`
	BusinessDays int       `json:"business_days"`
	Strike       float64   `json:"strike"`

	AssetWeight float64 `json:"asset_weight"` // percent of total quantity
	CallWeight  float64 `json:"call_weight"`
	PutWeight   float64 `json:"put_weight"`

	FlatRate   float64   `json:"flat_rate"` // percent, carry if the stock pins the strike
	BreakevenA Breakeven `json:"breakeven_a"`
	BreakevenB Breakeven `json:"breakeven_b"`

	SpreadIn  float64 `json:"spread_in"`  // per-share cost of entering at market
	SpreadOut float64 `json:"spread_out"` // per-share proceeds of exiting at market

	AssemblyCost float64 `json:"assembly_cost"`
	D1Flow       float64 `json:"d1_flow"`
	D2Flow       float64 `json:"d2_flow"`
}

// BuildSummary computes the assembly metrics for params against pair at
// the snapshot's quotes. Metrics whose quotes are absent come back zero;
// breakevens depend only on params and are always attempted.
func BuildSummary(params models.StrategyParams, pair models.OptionPair, prices marketdata.PriceSnapshot, now time.Time) Summary {
	s := Summary{
		Asset:        pair.Asset,
		CallTicker:   pair.CallTicker,
		PutTicker:    pair.PutTicker,
		Expiration:   pair.Expiration,
		CalendarDays: util.CalendarDaysBetween(now, pair.Expiration),
		Strike:       pair.Strike,
	}
	if s.CalendarDays > 0 {
		s.BusinessDays = util.BusinessDaysBetween(now, pair.Expiration)
	}

	if total := params.TotalQuantity(); total > 0 {
		s.AssetWeight = float64(params.AssetQty) / float64(total) * 100
		s.CallWeight = float64(params.CallQty) / float64(total) * 100
		s.PutWeight = float64(params.PutQty) / float64(total) * 100
	}

	assetAsk, okAA := prices.Ask(pair.Asset)
	assetBid, okAB := prices.Bid(pair.Asset)
	callAsk, okCA := prices.Ask(pair.CallTicker)
	callBid, okCB := prices.Bid(pair.CallTicker)
	putAsk, okPA := prices.Ask(pair.PutTicker)
	putBid, okPB := prices.Bid(pair.PutTicker)

	if okAA && okCB && okPA {
		flatPart := pair.Strike - assetAsk + callBid - putAsk
		if base := math.Abs(assetAsk - callBid + putAsk); base > 0 {
			s.FlatRate = flatPart / base * 100
		}
		s.SpreadIn = -assetAsk + callBid - putAsk
		s.AssemblyCost = -float64(params.AssetQty)*assetAsk +
			float64(params.CallQty)*callBid -
			float64(params.PutQty)*putAsk
	}
	if okAB && okCA && okPB {
		s.SpreadOut = assetBid - callAsk + putBid
	}
	if okCB && okPA {
		s.D1Flow = float64(params.CallQty)*callBid - float64(params.PutQty)*putAsk
		s.D2Flow = s.D1Flow
		if okAA {
			s.D2Flow -= float64(params.AssetQty) * assetAsk
		}
	}

	s.BreakevenA, s.BreakevenB = breakevens(params)
	return s
}

// breakevens solves pnl(S)=0 on the two linear segments of the curve:
// above the strike (stock vs. short call) and below it (stock vs. long
// put). A zero denominator means the segment never crosses zero.
func breakevens(p models.StrategyParams) (Breakeven, Breakeven) {
	s0, k := p.AssetPrice, p.Strike
	qa, qc, qp := float64(p.AssetQty), float64(p.CallQty), float64(p.PutQty)
	pc, pp := p.CallPrice, p.PutPrice

	var a, b Breakeven
	if qa != qc {
		a.Price = (s0*qa - pc*qc - k*qc + pp*qp) / (qa - qc)
		a.Valid = true
	}
	if qa != qp {
		b.Price = (s0*qa - pc*qc - k*qp + pp*qp) / (qa - qp)
		b.Valid = true
	}
	if s0 > 0 {
		if a.Valid {
			a.Percent = (a.Price/s0 - 1) * 100
		}
		if b.Valid {
			b.Percent = (b.Price/s0 - 1) * 100
		}
	}
	return a, b
}

// Valuation is the mark-to-market view of a held position.
type Valuation struct {
	AssemblyCost  float64 `json:"assembly_cost"`
	UnwindValue   float64 `json:"unwind_value"` // proceeds of closing all legs at market
	Result        float64 `json:"result"`
	ResultPercent float64 `json:"result_percent"` // on capital at risk
	CalendarDays  int     `json:"calendar_days"`
	BusinessDays  int     `json:"business_days"`
	Priced        bool    `json:"priced"` // false when a closing quote was absent
}

// Valuate marks the position against the snapshot: sell the stock and the
// put at bid, buy the call back at ask. With any closing quote absent the
// unwind value and result stay zero and Priced is false.
func Valuate(pos models.Position, prices marketdata.PriceSnapshot, now time.Time) Valuation {
	v := Valuation{
		AssemblyCost: pos.AssemblyCost(),
		CalendarDays: util.CalendarDaysBetween(now, pos.Expiration),
	}
	if v.CalendarDays > 0 {
		v.BusinessDays = util.BusinessDaysBetween(now, pos.Expiration)
	}

	assetBid, okA := prices.Bid(pos.Tickers.Asset)
	callAsk, okC := prices.Ask(pos.Tickers.Call)
	putBid, okP := prices.Bid(pos.Tickers.Put)
	if !okA || !okC || !okP {
		return v
	}

	v.Priced = true
	v.UnwindValue = assetBid*float64(pos.Asset.Quantity) -
		callAsk*float64(pos.Call.Quantity) +
		putBid*float64(pos.Put.Quantity)
	v.Result = v.UnwindValue + v.AssemblyCost
	if car := pos.CapitalAtRisk(); car > 0 {
		v.ResultPercent = v.Result / car * 100
	}
	return v
}

// TargetPlusCost is the cash the rollover must raise to both recover the
// position's assembly cost and bank the target profit.
func TargetPlusCost(pos models.Position, targetProfit float64) float64 {
	return math.Abs(pos.AssemblyCost()) + targetProfit
}

// Basket renders the rollover as broker-basket lines, one operation per
// line in "TICKER\t{B|S}\tQTY" form. Zero-quantity operations are
// omitted; an empty rollover yields no lines.
func Basket(assembly Quantities, unwind models.UnwindQuantities, pos models.Position, pair models.OptionPair) ([]string, error) {
	if pos.Tickers.Asset != pair.Asset {
		return nil, fmt.Errorf("%w: position %s, pair %s", models.ErrAssetMismatch, pos.Tickers.Asset, pair.Asset)
	}

	var lines []string
	add := func(ticker string, action Action, qty int) {
		if qty > 0 {
			lines = append(lines, fmt.Sprintf("%s\t%s\t%d", ticker, action, qty))
		}
	}
	add(pos.Tickers.Call, ActionBuy, unwind.CallQty)
	add(pair.CallTicker, ActionSell, int(assembly.CallQty))
	add(pos.Tickers.Put, ActionSell, unwind.PutQty)
	add(pair.PutTicker, ActionBuy, int(assembly.PutQty))

	netAssetChange := int(assembly.AssetQty) - unwind.AssetQty
	if netAssetChange > 0 {
		add(pos.Tickers.Asset, ActionBuy, netAssetChange)
	} else if netAssetChange < 0 {
		add(pos.Tickers.Asset, ActionSell, -netAssetChange)
	}
	return lines, nil
}
