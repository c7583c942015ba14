package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// defaultSettleDelay is how long the bridge waits after subscribing
// symbols before ticks are considered valid. The terminal needs a moment
// to start streaming a freshly selected symbol.
const defaultSettleDelay = 200 * time.Millisecond

// APIError represents a bridge error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Status, e.Body)
}

// tick is the bridge's quote payload for a single symbol.
type tick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
}

// BridgeClient fetches quotes from the trading-terminal HTTP bridge. It
// subscribes symbols to the terminal's watch list before reading ticks and
// falls back to the last trade price when a side of the book is empty.
type BridgeClient struct {
	client      *http.Client
	baseURL     string
	settleDelay time.Duration
	logger      *logrus.Logger
}

var _ Gateway = (*BridgeClient)(nil)

// BridgeOption customizes a BridgeClient.
type BridgeOption func(*BridgeClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) BridgeOption {
	return func(b *BridgeClient) { b.client = client }
}

// WithSettleDelay overrides the post-subscription settling delay.
func WithSettleDelay(d time.Duration) BridgeOption {
	return func(b *BridgeClient) { b.settleDelay = d }
}

// NewBridgeClient creates a bridge client against the given base URL.
func NewBridgeClient(baseURL string, logger *logrus.Logger, opts ...BridgeOption) *BridgeClient {
	b := &BridgeClient{
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		settleDelay: defaultSettleDelay,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FetchPrices subscribes the symbols, waits for the terminal to settle,
// then reads ticks concurrently and assembles a snapshot. Symbols whose
// bid/ask and last price are all unusable simply do not appear in the
// result. A transport-level failure aborts the whole fetch.
func (b *BridgeClient) FetchPrices(ctx context.Context, symbols []string) (PriceSnapshot, error) {
	unique := dedupeSymbols(symbols)
	if len(unique) == 0 {
		return PriceSnapshot{}, nil
	}

	for _, symbol := range unique {
		if err := b.selectSymbol(ctx, symbol); err != nil {
			// A symbol that cannot be watched yields no quotes; the
			// calculators will report the request as unavailable.
			b.logger.Warnf("could not select %s on the watch list: %v", symbol, err)
		}
	}

	select {
	case <-time.After(b.settleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var mu sync.Mutex
	snapshot := make(PriceSnapshot, len(unique)*2)

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range unique {
		g.Go(func() error {
			tk, err := b.fetchTick(gctx, symbol)
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
					// Unknown symbol: absent from the snapshot, not fatal.
					return nil
				}
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			snapshot.Set(symbol, SideAsk, fallbackPrice(tk.Ask, tk.Last))
			snapshot.Set(symbol, SideBid, fallbackPrice(tk.Bid, tk.Last))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching ticks: %w", err)
	}
	return snapshot, nil
}

// fallbackPrice prefers the book price and falls back to the last trade.
func fallbackPrice(book, last float64) float64 {
	if book > 0 {
		return book
	}
	return last
}

func (b *BridgeClient) selectSymbol(ctx context.Context, symbol string) error {
	endpoint := fmt.Sprintf("%s/v1/symbols/%s/select", b.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (b *BridgeClient) fetchTick(ctx context.Context, symbol string) (*tick, error) {
	endpoint := fmt.Sprintf("%s/v1/ticks/%s", b.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	var tk tick
	if err := json.NewDecoder(resp.Body).Decode(&tk); err != nil {
		return nil, fmt.Errorf("decoding tick for %s: %w", symbol, err)
	}
	return &tk, nil
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}
	return unique
}
