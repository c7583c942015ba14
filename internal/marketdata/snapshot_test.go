package marketdata

import (
	"math"
	"testing"
)

func TestSnapshotAbsenceSemantics(t *testing.T) {
	s := PriceSnapshot{}
	s.Set("PETR4", SideAsk, 35.10)
	s.Set("PETR4", SideBid, 0) // no liquidity: must stay absent

	if _, ok := s.Ask("PETR4"); !ok {
		t.Error("ask should be present")
	}
	if _, ok := s.Bid("PETR4"); ok {
		t.Error("zero price must not be stored; absence means unavailable")
	}
	if _, ok := s.Ask("VALE3"); ok {
		t.Error("unknown symbol must be absent")
	}
}

func TestAdjustForImprovement(t *testing.T) {
	s := PriceSnapshot{}
	s.Set("PETR4", SideAsk, 100)
	s.Set("PETR4", SideBid, 98)
	s.Set("PETRA350", SideAsk, 2.00)

	adjusted := s.AdjustForImprovement(0.05)

	if got, _ := adjusted.Bid("PETR4"); math.Abs(got-98*1.05) > 1e-9 {
		t.Errorf("bid should scale up: got %.4f", got)
	}
	if got, _ := adjusted.Ask("PETR4"); math.Abs(got-100*0.95) > 1e-9 {
		t.Errorf("ask should scale down: got %.4f", got)
	}
	if got, _ := adjusted.Ask("PETRA350"); math.Abs(got-2.00*0.95) > 1e-9 {
		t.Errorf("option ask should scale down: got %.4f", got)
	}
	if _, ok := adjusted.Bid("PETRA350"); ok {
		t.Error("absent quotes must stay absent after adjustment")
	}
	if got, _ := s.Ask("PETR4"); got != 100 {
		t.Error("adjustment must not mutate the source snapshot")
	}
}
