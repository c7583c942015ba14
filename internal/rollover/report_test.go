package rollover

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/models"
)

func TestBuildSummary(t *testing.T) {
	params := models.StrategyParams{
		AssetPrice: 24.10, AssetQty: 1000,
		CallPrice: 3.50, CallQty: 1000,
		PutPrice: 0.90, PutQty: 2000,
		Strike: 25.0,
	}
	pair := testPair()
	pair.Expiration = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	s := BuildSummary(params, pair, fullSnapshot(), now)

	if s.CalendarDays != 45 {
		t.Errorf("calendar days = %d, want 45", s.CalendarDays)
	}
	if s.BusinessDays != 33 {
		t.Errorf("business days = %d, want 33", s.BusinessDays)
	}
	if math.Abs(s.AssetWeight-25.0) > 1e-9 || math.Abs(s.CallWeight-25.0) > 1e-9 || math.Abs(s.PutWeight-50.0) > 1e-9 {
		t.Errorf("weights = %.1f/%.1f/%.1f, want 25/25/50", s.AssetWeight, s.CallWeight, s.PutWeight)
	}

	// Flat rate at asset ask 24.10, call bid 3.50, put ask 0.90,
	// strike 25: (25 - 24.10 + 3.50 - 0.90) / |24.10 - 3.50 + 0.90|.
	wantRate := (25.0 - 24.10 + 3.50 - 0.90) / math.Abs(24.10-3.50+0.90) * 100
	if math.Abs(s.FlatRate-wantRate) > 1e-9 {
		t.Errorf("flat rate = %.4f, want %.4f", s.FlatRate, wantRate)
	}

	if math.Abs(s.SpreadIn-(-24.10+3.50-0.90)) > 1e-9 {
		t.Errorf("spread in = %.4f", s.SpreadIn)
	}
	if math.Abs(s.SpreadOut-(24.00-3.60+0.85)) > 1e-9 {
		t.Errorf("spread out = %.4f", s.SpreadOut)
	}

	wantCost := -1000*24.10 + 1000*3.50 - 2000*0.90
	if math.Abs(s.AssemblyCost-wantCost) > 1e-9 {
		t.Errorf("assembly cost = %.2f, want %.2f", s.AssemblyCost, wantCost)
	}
	wantD1 := 1000*3.50 - 2000*0.90
	if math.Abs(s.D1Flow-wantD1) > 1e-9 {
		t.Errorf("d1 flow = %.2f, want %.2f", s.D1Flow, wantD1)
	}
	if math.Abs(s.D2Flow-(wantD1-1000*24.10)) > 1e-9 {
		t.Errorf("d2 flow = %.2f, want %.2f", s.D2Flow, wantD1-1000*24.10)
	}
}

func TestBuildSummaryMissingQuotesZeroMetrics(t *testing.T) {
	params := models.StrategyParams{AssetPrice: 24.0, AssetQty: 1000, CallQty: 1000, PutQty: 1000, Strike: 25.0}
	s := BuildSummary(params, testPair(), marketdata.PriceSnapshot{}, time.Now())
	if s.FlatRate != 0 || s.SpreadIn != 0 || s.SpreadOut != 0 || s.AssemblyCost != 0 || s.D1Flow != 0 || s.D2Flow != 0 {
		t.Errorf("quote-dependent metrics not zero: %+v", s)
	}
	// Breakevens depend only on params and survive the empty snapshot.
	if !s.BreakevenA.Valid && !s.BreakevenB.Valid {
		t.Error("expected at least one breakeven attempt from params alone")
	}
}

func TestBreakevens(t *testing.T) {
	// qa == qc: the upper segment is flat, only the lower breakeven exists.
	params := models.StrategyParams{
		AssetPrice: 20.0, AssetQty: 1000,
		CallPrice: 1.50, CallQty: 1000,
		PutPrice: 0.80, PutQty: 500,
		Strike: 21.0,
	}
	a, b := breakevens(params)
	if a.Valid {
		t.Error("breakeven A should be invalid when asset and call quantities match")
	}
	if !b.Valid {
		t.Fatal("breakeven B should be valid")
	}
	want := (20.0*1000 - 1.50*1000 - 21.0*500 + 0.80*500) / (1000 - 500)
	if math.Abs(b.Price-want) > 1e-9 {
		t.Errorf("breakeven B = %.4f, want %.4f", b.Price, want)
	}
	if math.Abs(b.Percent-((want/20.0-1)*100)) > 1e-9 {
		t.Errorf("breakeven B pct = %.4f", b.Percent)
	}
}

func TestValuate(t *testing.T) {
	pos := testPosition()
	pos.Expiration = time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	v := Valuate(pos, fullSnapshot(), now)
	if !v.Priced {
		t.Fatal("expected priced valuation")
	}
	wantCost := -(23.00 * 1000) + 1.20*1000 - 0.70*1000
	if math.Abs(v.AssemblyCost-wantCost) > 1e-9 {
		t.Errorf("assembly cost = %.2f, want %.2f", v.AssemblyCost, wantCost)
	}
	// Sell the stock and put at bid, buy the call back at ask.
	wantUnwind := 24.00*1000 - 2.00*1000 + 0.50*1000
	if math.Abs(v.UnwindValue-wantUnwind) > 1e-9 {
		t.Errorf("unwind value = %.2f, want %.2f", v.UnwindValue, wantUnwind)
	}
	if math.Abs(v.Result-(wantUnwind+wantCost)) > 1e-9 {
		t.Errorf("result = %.2f, want %.2f", v.Result, wantUnwind+wantCost)
	}
	wantPct := (wantUnwind + wantCost) / (23.00 * 1000) * 100
	if math.Abs(v.ResultPercent-wantPct) > 1e-9 {
		t.Errorf("result pct = %.4f, want %.4f", v.ResultPercent, wantPct)
	}
	if v.CalendarDays != 17 {
		t.Errorf("calendar days = %d, want 17", v.CalendarDays)
	}
}

func TestValuateUnpricedWithoutQuotes(t *testing.T) {
	prices := fullSnapshot()
	delete(prices, "PETRA250_ask")
	v := Valuate(testPosition(), prices, time.Now())
	if v.Priced {
		t.Fatal("expected unpriced valuation")
	}
	if v.UnwindValue != 0 || v.Result != 0 {
		t.Errorf("unwind/result should stay zero when unpriced: %+v", v)
	}
	if v.AssemblyCost == 0 {
		t.Error("assembly cost should not depend on quotes")
	}
}

func TestTargetPlusCost(t *testing.T) {
	pos := testPosition()
	want := math.Abs(pos.AssemblyCost()) + 1500.0
	if got := TargetPlusCost(pos, 1500.0); math.Abs(got-want) > 1e-9 {
		t.Errorf("TargetPlusCost = %.2f, want %.2f", got, want)
	}
}

func TestBasket(t *testing.T) {
	assembly := Quantities{AssetQty: 1500, CallQty: 1000, PutQty: 1000}
	unwind := models.UnwindQuantities{AssetQty: 1000, CallQty: 1000, PutQty: 1000}

	lines, err := Basket(assembly, unwind, testPosition(), testPair())
	if err != nil {
		t.Fatalf("Basket: %v", err)
	}
	want := []string{
		"PETRA250\tB\t1000",
		"PETRB260\tS\t1000",
		"PETRM230\tS\t1000",
		"PETRN240\tB\t1000",
		"PETR4\tB\t500",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestBasketSkipsZeroQuantities(t *testing.T) {
	assembly := Quantities{CallQty: 1000}
	unwind := models.UnwindQuantities{CallQty: 1000}
	lines, err := Basket(assembly, unwind, testPosition(), testPair())
	if err != nil {
		t.Fatalf("Basket: %v", err)
	}
	want := []string{"PETRA250\tB\t1000", "PETRB260\tS\t1000"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}
