package chain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleCSV = `ativo_principal;ticker_call;ticker_put;strike;expiracao
PETR4;PETRA240;PETRM220;24,00;16/10/2026
PETR4;PETRA250;PETRM230;25,00;16/10/2026
PETR4;PETRA300;PETRM280;30,00;16/10/2026
PETR4;PETRB240;PETRN220;24,00;20/11/2026
VALE3;VALEA600;VALEM580;60,00;16/10/2026
PETR4;PETRBAD;PETRNBAD;abc;16/10/2026
PETR4;PETRBAD2;PETRNBAD2;24,00;not-a-date
`

func writeChain(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesMarketFormat(t *testing.T) {
	src, err := Load(writeChain(t, sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assets := src.Assets()
	want := []string{"PETR4", "VALE3"}
	if len(assets) != len(want) || assets[0] != want[0] || assets[1] != want[1] {
		t.Errorf("assets = %v, want %v", assets, want)
	}

	// Comma decimals and dd/mm/yyyy dates round-trip; broken rows are
	// skipped.
	cands := src.Pairs("PETR4", 24.50)
	for _, c := range cands {
		if c.CallTicker == "PETRBAD" || c.CallTicker == "PETRBAD2" {
			t.Errorf("unparseable row survived: %+v", c)
		}
	}
	if len(cands) == 0 {
		t.Fatal("no candidates for PETR4")
	}
	if got := cands[0].Expiration; !got.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expiration = %v, want 2026-10-16", got)
	}
}

func TestPairsFiltersStrikesAroundSpot(t *testing.T) {
	src, err := Load(writeChain(t, sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Spot 24.50: bounds are 20.83..28.18, so the 30.00 strike is out.
	cands := src.Pairs("PETR4", 24.50)
	for _, c := range cands {
		if c.Strike == 30.00 {
			t.Errorf("strike 30.00 outside +15%% bound survived the filter")
		}
		if c.Asset != "PETR4" {
			t.Errorf("foreign asset %q in candidates", c.Asset)
		}
	}
	if len(cands) != 3 {
		t.Errorf("got %d candidates, want 3", len(cands))
	}
}

func TestPairsSortedByExpirationThenDistance(t *testing.T) {
	src, err := Load(writeChain(t, sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cands := src.Pairs("PETR4", 24.80)
	for i := 1; i < len(cands); i++ {
		prev, cur := cands[i-1], cands[i]
		if cur.Expiration.Before(prev.Expiration) {
			t.Fatalf("candidates not sorted by expiration: %v after %v", cur.Expiration, prev.Expiration)
		}
		if cur.Expiration.Equal(prev.Expiration) && cur.StrikeDistance < prev.StrikeDistance {
			t.Fatalf("candidates not sorted by strike distance within expiration")
		}
	}
}

func TestPairsMarksClosestStrikePerExpiration(t *testing.T) {
	src, err := Load(writeChain(t, sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Spot 24.80: in October 25.00 beats 24.00; November has only 24.00.
	cands := src.Pairs("PETR4", 24.80)
	closest := make(map[string]bool)
	for _, c := range cands {
		if c.ClosestStrike {
			closest[c.CallTicker] = true
		}
	}
	if !closest["PETRA250"] {
		t.Error("PETRA250 should be the closest October strike")
	}
	if closest["PETRA240"] {
		t.Error("PETRA240 flagged closest despite 25.00 being nearer")
	}
	if !closest["PETRB240"] {
		t.Error("PETRB240 should be flagged as the only November strike")
	}
}

func TestLoadEmptyChain(t *testing.T) {
	_, err := Load(writeChain(t, "ativo_principal;ticker_call;ticker_put;strike;expiracao\n"))
	if !errors.Is(err, ErrNoChain) {
		t.Fatalf("err = %v, want ErrNoChain", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
