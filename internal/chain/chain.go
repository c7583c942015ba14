// Package chain loads the option-chain table the candidate pairs are
// picked from. The table is a semicolon-separated CSV in the local
// market's export convention: comma decimal strikes and dd/mm/yyyy
// expirations.
package chain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/vectorprofit/collarroll/internal/models"
)

// Strike bounds relative to spot for the filtered view.
const (
	lowerStrikeBound = 0.85
	upperStrikeBound = 1.15
)

const expirationLayout = "02/01/2006"

// ErrNoChain is returned when the chain file holds no usable rows.
var ErrNoChain = errors.New("empty option chain")

// row mirrors one CSV record. Strike stays a string because the export
// uses comma decimals; parsing happens in toPair.
type row struct {
	Asset      string `csv:"ativo_principal"`
	CallTicker string `csv:"ticker_call"`
	PutTicker  string `csv:"ticker_put"`
	Strike     string `csv:"strike"`
	Expiration string `csv:"expiracao"`
}

func (r row) toPair() (models.OptionPair, error) {
	strike, err := strconv.ParseFloat(strings.ReplaceAll(r.Strike, ",", "."), 64)
	if err != nil {
		return models.OptionPair{}, fmt.Errorf("strike %q: %w", r.Strike, err)
	}
	exp, err := time.Parse(expirationLayout, r.Expiration)
	if err != nil {
		return models.OptionPair{}, fmt.Errorf("expiration %q: %w", r.Expiration, err)
	}
	return models.OptionPair{
		Asset:      r.Asset,
		CallTicker: r.CallTicker,
		PutTicker:  r.PutTicker,
		Strike:     strike,
		Expiration: exp,
	}, nil
}

// Candidate is a chain pair plus its ranking against the live spot.
// ClosestStrike marks the pair nearest the spot within its expiration.
type Candidate struct {
	models.OptionPair
	StrikeDistance float64 `json:"strike_distance"`
	ClosestStrike  bool    `json:"closest_strike"`
}

// Source serves filtered chain lookups from an in-memory table.
type Source struct {
	pairs []models.OptionPair
}

// Load reads the chain CSV at path. Rows with unparseable strikes or
// expirations are skipped, matching the export's tolerance for stray
// lines; a file with no usable rows is an error.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chain: %w", err)
	}
	defer f.Close()
	return load(f)
}

func load(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows []row
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("parsing chain: %w", err)
	}

	src := &Source{}
	for _, r := range rows {
		pair, err := r.toPair()
		if err != nil {
			continue
		}
		if pair.Complete() {
			src.pairs = append(src.pairs, pair)
		}
	}
	if len(src.pairs) == 0 {
		return nil, ErrNoChain
	}
	return src, nil
}

// Assets returns the distinct underlyings in the chain, sorted.
func (s *Source) Assets() []string {
	seen := make(map[string]struct{})
	var assets []string
	for _, p := range s.pairs {
		if _, ok := seen[p.Asset]; !ok {
			seen[p.Asset] = struct{}{}
			assets = append(assets, p.Asset)
		}
	}
	sort.Strings(assets)
	return assets
}

// Pairs returns the candidates for an underlying with strikes within
// ±15% of spot, sorted by expiration then strike distance. The pair
// closest to spot within each expiration is flagged.
func (s *Source) Pairs(asset string, spot float64) []Candidate {
	lower, upper := spot*lowerStrikeBound, spot*upperStrikeBound

	var out []Candidate
	for _, p := range s.pairs {
		if p.Asset != asset || p.Strike < lower || p.Strike > upper {
			continue
		}
		out = append(out, Candidate{
			OptionPair:     p,
			StrikeDistance: math.Abs(p.Strike - spot),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expiration.Equal(out[j].Expiration) {
			return out[i].Expiration.Before(out[j].Expiration)
		}
		return out[i].StrikeDistance < out[j].StrikeDistance
	})

	markClosest(out)
	return out
}

// markClosest flags the minimum-distance candidate per expiration; ties
// on the same strike are all flagged.
func markClosest(cands []Candidate) {
	closest := make(map[time.Time]float64)
	for _, c := range cands {
		key := c.Expiration
		if d, ok := closest[key]; !ok || c.StrikeDistance < d {
			closest[key] = c.StrikeDistance
		}
	}
	for i := range cands {
		if math.Abs(cands[i].StrikeDistance-closest[cands[i].Expiration]) < 1e-6 {
			cands[i].ClosestStrike = true
		}
	}
}
