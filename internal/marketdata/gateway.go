package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Gateway defines the contract for fetching live quotes. Implementations
// must subscribe symbols as a side effect when the upstream terminal
// requires it, and must leave symbols with no usable price out of the
// returned snapshot rather than reporting zero.
type Gateway interface {
	FetchPrices(ctx context.Context, symbols []string) (PriceSnapshot, error)
}

// CircuitBreakerGateway wraps a Gateway with circuit breaker functionality
// so a flapping terminal bridge does not stall every recalculation.
type CircuitBreakerGateway struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// Ensure the decorator implements Gateway at compile time.
var _ Gateway = (*CircuitBreakerGateway)(nil)

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerGateway creates a CircuitBreakerGateway with sensible
// defaults for an interactive tool: trip fast, recover within seconds.
func NewCircuitBreakerGateway(gateway Gateway, logger *logrus.Logger) *CircuitBreakerGateway {
	return NewCircuitBreakerGatewayWithSettings(gateway, logger, CircuitBreakerSettings{
		MaxRequests:  2,
		Interval:     30 * time.Second,
		Timeout:      10 * time.Second,
		MinRequests:  4,
		FailureRatio: 0.6,
	})
}

// NewCircuitBreakerGatewayWithSettings creates a CircuitBreakerGateway
// with custom settings.
func NewCircuitBreakerGatewayWithSettings(
	gateway Gateway,
	logger *logrus.Logger,
	settings CircuitBreakerSettings,
) *CircuitBreakerGateway {
	gbSettings := gobreaker.Settings{
		Name:        "QuoteGateway",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warnf("circuit breaker %s state changed from %s to %s", name, from, to)
			}
		},
	}

	return &CircuitBreakerGateway{
		gateway: gateway,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// FetchPrices wraps the underlying gateway call with the circuit breaker.
func (c *CircuitBreakerGateway) FetchPrices(ctx context.Context, symbols []string) (PriceSnapshot, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.gateway.FetchPrices(ctx, symbols)
	})
	if err != nil {
		return nil, err
	}
	snapshot, ok := res.(PriceSnapshot)
	if !ok {
		return nil, errors.New("circuit breaker: type assertion failed")
	}
	return snapshot, nil
}
