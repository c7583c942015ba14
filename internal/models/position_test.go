package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func samplePosition() Position {
	return Position{
		ID: "pos-1",
		Tickers: Tickers{
			Asset: "PETR4",
			Call:  "PETRA350",
			Put:   "PETRM350",
		},
		Expiration: time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		Strike:     35.0,
		Asset:      Leg{Side: SideLong, Quantity: 1000, AvgPrice: 10.00},
		Call:       Leg{Side: SideShort, Quantity: 1000, AvgPrice: 1.20},
		Put:        Leg{Side: SideLong, Quantity: 1000, AvgPrice: 0.80},
	}
}

func TestAssembleAveragesPrices(t *testing.T) {
	existing := samplePosition()
	add := Position{
		Tickers:    existing.Tickers,
		Expiration: existing.Expiration,
		Strike:     existing.Strike,
		Asset:      Leg{Side: SideLong, Quantity: 500, AvgPrice: 13.00},
		Call:       Leg{Side: SideShort, Quantity: 500, AvgPrice: 1.50},
		Put:        Leg{Side: SideLong, Quantity: 500, AvgPrice: 1.10},
	}

	merged, err := Assemble(existing, add)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if merged.Asset.Quantity != 1500 {
		t.Errorf("asset quantity = %d, expected 1500", merged.Asset.Quantity)
	}
	if math.Abs(merged.Asset.AvgPrice-11.00) > 1e-9 {
		t.Errorf("asset avg price = %.6f, expected 11.00", merged.Asset.AvgPrice)
	}
	if merged.ID != existing.ID {
		t.Errorf("assemble must preserve the position ID, got %q", merged.ID)
	}
}

func TestAssembleZeroTotalResetsPrice(t *testing.T) {
	existing := samplePosition()
	existing.Call = Leg{Side: SideShort, Quantity: 0, AvgPrice: 1.20}
	add := existing
	add.Asset = Leg{Side: SideLong, Quantity: 0}
	add.Call = Leg{Side: SideShort, Quantity: 0, AvgPrice: 9.99}
	add.Put = Leg{Side: SideLong, Quantity: 100, AvgPrice: 1.00}

	merged, err := Assemble(existing, add)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if merged.Call.Quantity != 0 || merged.Call.AvgPrice != 0 {
		t.Errorf("zero total quantity must reset avg price, got qty=%d price=%.2f",
			merged.Call.Quantity, merged.Call.AvgPrice)
	}
}

func TestAssembleRefusesCrossUnderlying(t *testing.T) {
	existing := samplePosition()
	add := samplePosition()
	add.Tickers.Asset = "VALE3"

	got, err := Assemble(existing, add)
	if !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
	if got.Tickers.Asset != existing.Tickers.Asset || got.Asset.Quantity != existing.Asset.Quantity {
		t.Error("failed assemble must leave the existing position unchanged")
	}
}

func TestCombine(t *testing.T) {
	a := samplePosition()
	b := samplePosition()
	b.Asset = Leg{Side: SideLong, Quantity: 500, AvgPrice: 13.00}
	b.Call = Leg{Side: SideShort, Quantity: 500, AvgPrice: 1.50}
	b.Put = Leg{Side: SideLong, Quantity: 0}

	t.Run("weighted averaging", func(t *testing.T) {
		c := Combine(a, b)
		if c.Asset.Quantity != 1500 {
			t.Errorf("asset quantity = %d, expected 1500", c.Asset.Quantity)
		}
		if math.Abs(c.Asset.AvgPrice-11.00) > 1e-9 {
			t.Errorf("asset avg price = %.6f, expected 11.00", c.Asset.AvgPrice)
		}
	})

	t.Run("empty side passthrough", func(t *testing.T) {
		if got := Combine(a, Position{}); got.Asset != a.Asset || got.Tickers != a.Tickers {
			t.Error("combining with empty must return the other side unchanged")
		}
		if got := Combine(Position{}, b); got.Asset != b.Asset {
			t.Error("combining empty with b must return b")
		}
		if got := Combine(Position{}, Position{}); !got.Empty() {
			t.Error("combining two empties must be empty")
		}
	})

	t.Run("idempotent against zero-quantity twin", func(t *testing.T) {
		zero := a
		zero.Asset.Quantity = 0
		zero.Call.Quantity = 0
		zero.Put.Quantity = 0
		got := Combine(a, zero)
		if got.Asset != a.Asset || got.Call != a.Call || got.Put != a.Put {
			t.Error("combine with a zero-quantity twin must equal the original")
		}
	})

	t.Run("associative with empty", func(t *testing.T) {
		ab := Combine(a, b)
		if got := Combine(ab, Position{}); got != ab {
			t.Error("combine(combine(a,b), empty) must equal combine(a,b)")
		}
	})
}

func TestAssemblyCost(t *testing.T) {
	pos := samplePosition()
	// -(10*1000) + (1.20*1000) - (0.80*1000) = -9600
	if got := pos.AssemblyCost(); math.Abs(got-(-9600)) > 1e-9 {
		t.Errorf("AssemblyCost = %.2f, expected -9600.00", got)
	}
	if got := pos.CapitalAtRisk(); math.Abs(got-10000) > 1e-9 {
		t.Errorf("CapitalAtRisk = %.2f, expected 10000.00", got)
	}
}

func TestUnwindCheckAgainst(t *testing.T) {
	pos := samplePosition()

	tests := []struct {
		name    string
		unwind  UnwindQuantities
		wantErr error
	}{
		{"within capacity", UnwindQuantities{AssetQty: 1000, CallQty: 1000, PutQty: 1000}, nil},
		{"partial", UnwindQuantities{AssetQty: 200, CallQty: 400, PutQty: 0}, nil},
		{"call exceeds", UnwindQuantities{CallQty: 2000}, ErrUnwindExceedsPosition},
		{"asset exceeds", UnwindQuantities{AssetQty: 1001}, ErrUnwindExceedsPosition},
		{"negative input", UnwindQuantities{AssetQty: -100}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unwind.CheckAgainst(pos)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPositionEmptyAndValidate(t *testing.T) {
	var empty Position
	if !empty.Empty() {
		t.Error("zero value must be empty")
	}
	if err := empty.Validate(); err != nil {
		t.Errorf("empty position must validate, got %v", err)
	}

	pos := samplePosition()
	pos.Tickers.Asset = ""
	if err := pos.Validate(); err == nil {
		t.Error("non-empty position without asset ticker must fail validation")
	}
}

func TestSignedQuantity(t *testing.T) {
	if got := (Leg{Side: SideShort, Quantity: 500}).SignedQuantity(); got != -500 {
		t.Errorf("short leg signed quantity = %d, expected -500", got)
	}
	if got := (Leg{Side: SideLong, Quantity: 500}).SignedQuantity(); got != 500 {
		t.Errorf("long leg signed quantity = %d, expected 500", got)
	}
}
