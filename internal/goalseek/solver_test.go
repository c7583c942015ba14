package goalseek

import (
	"errors"
	"math"
	"testing"

	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/rollover"
)

func TestSolveQuantityConvergesOnLinearObjective(t *testing.T) {
	// f(x) = 2x + 100 with target 500 has its root at x = 200.
	obj := func(legs rollover.Quantities) (float64, error) {
		return 2*legs.Total() + 100, nil
	}
	base := rollover.Quantities{AssetQty: 1000, CallQty: 1000, PutQty: 1000}

	res, err := SolveQuantity(obj, 500, base, Config{})
	if err != nil {
		t.Fatalf("SolveQuantity: %v", err)
	}
	if res.Outcome != OutcomeConverged {
		t.Fatalf("outcome = %v, want converged", res.Outcome)
	}
	if res.Iterations > 20 {
		t.Errorf("iterations = %d, want <= 20", res.Iterations)
	}
	if got := 2*res.Multiplier + 100; math.Abs(got-500) >= 50 {
		t.Errorf("f(multiplier) = %.2f, want within 50 of 500", got)
	}
	if math.Abs(res.Multiplier-200) > 50 {
		t.Errorf("multiplier = %.2f, want near 200", res.Multiplier)
	}
}

func TestSolveQuantityConstantObjectiveHasNoSolution(t *testing.T) {
	obj := func(rollover.Quantities) (float64, error) { return 42, nil }
	base := rollover.Quantities{AssetQty: 1000, CallQty: 1000, PutQty: 1000}

	res, err := SolveQuantity(obj, 500, base, Config{})
	if err != nil {
		t.Fatalf("SolveQuantity: %v", err)
	}
	if res.Outcome != OutcomeNoSolution {
		t.Fatalf("outcome = %v, want no_solution", res.Outcome)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", res.Iterations)
	}
}

func TestSolveQuantityObjectiveErrorAborts(t *testing.T) {
	wantErr := errors.New("quote gone")
	obj := func(rollover.Quantities) (float64, error) { return 0, wantErr }
	base := rollover.Quantities{AssetQty: 1000}

	_, err := SolveQuantity(obj, 500, base, Config{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the objective's error", err)
	}
}

func TestSolveQuantityClampsAtZero(t *testing.T) {
	// The root of 2x + 100 = -10000 is negative; the clamp pins x at zero
	// and the budget runs out.
	obj := func(legs rollover.Quantities) (float64, error) {
		return 2*legs.Total() + 100, nil
	}
	base := rollover.Quantities{AssetQty: 3000}

	res, err := SolveQuantity(obj, -10000, base, Config{})
	if err != nil {
		t.Fatalf("SolveQuantity: %v", err)
	}
	if res.Outcome != OutcomeMaxIterations {
		t.Fatalf("outcome = %v, want max_iterations", res.Outcome)
	}
	if res.Multiplier != 0 {
		t.Errorf("multiplier = %.2f, want clamped to 0", res.Multiplier)
	}
}

func TestSolveQuantityRejectsZeroBase(t *testing.T) {
	obj := func(rollover.Quantities) (float64, error) { return 0, nil }
	_, err := SolveQuantity(obj, 500, rollover.Quantities{}, Config{})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSolveQuantityRoundsLegsToLot(t *testing.T) {
	obj := func(legs rollover.Quantities) (float64, error) {
		return 2*legs.Total() + 100, nil
	}
	base := rollover.Quantities{AssetQty: 1000, CallQty: 1000, PutQty: 1000}

	res, err := SolveQuantity(obj, 500, base, Config{})
	if err != nil {
		t.Fatalf("SolveQuantity: %v", err)
	}
	for _, q := range []int{res.AssetQty, res.CallQty, res.PutQty} {
		if q%100 != 0 {
			t.Errorf("leg quantity %d is not a multiple of the lot size", q)
		}
	}
	// One third of a multiplier near 200 rounds to a single lot per leg.
	if res.AssetQty != 100 {
		t.Errorf("asset qty = %d, want 100", res.AssetQty)
	}
}
