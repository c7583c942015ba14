package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vectorprofit/collarroll/internal/marketdata"
)

type flakyGateway struct {
	failures int
	err      error
	calls    int
	snapshot marketdata.PriceSnapshot
}

func (f *flakyGateway) FetchPrices(_ context.Context, _ []string) (marketdata.PriceSnapshot, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.snapshot, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fastConfig() Config {
	return Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestFetchPricesRecoversAfterTransientFailure(t *testing.T) {
	want := marketdata.PriceSnapshot{"PETR4_bid": 24.00}
	inner := &flakyGateway{failures: 2, err: errors.New("connection refused"), snapshot: want}
	g := NewGateway(inner, quietLogger(), fastConfig())

	got, err := g.FetchPrices(context.Background(), []string{"PETR4"})
	if err != nil {
		t.Fatalf("expected recovery, got error: %v", err)
	}
	if got["PETR4_bid"] != 24.00 {
		t.Errorf("expected snapshot passthrough, got %v", got)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestFetchPricesGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyGateway{failures: 10, err: errors.New("tcp reset")}
	g := NewGateway(inner, quietLogger(), fastConfig())

	_, err := g.FetchPrices(context.Background(), []string{"PETR4"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestFetchPricesDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyGateway{failures: 10, err: errors.New("bridge error 404: unknown symbol")}
	g := NewGateway(inner, quietLogger(), fastConfig())

	_, err := g.FetchPrices(context.Background(), []string{"XXXX"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected a single attempt for a permanent error, got %d", inner.calls)
	}
}

func TestFetchPricesHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyGateway{failures: 0, snapshot: marketdata.PriceSnapshot{}}
	g := NewGateway(inner, quietLogger(), fastConfig())

	_, err := g.FetchPrices(ctx, []string{"PETR4"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("expected no attempts on canceled context, got %d", inner.calls)
	}
}
