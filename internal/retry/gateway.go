// Package retry decorates the quote gateway with bounded retries for
// transient bridge failures.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vectorprofit/collarroll/internal/marketdata"
)

// Config tunes the retry behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig suits an interactive tool: a couple of quick retries,
// never more than a few seconds of waiting.
var DefaultConfig = Config{
	MaxRetries:     2,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// Gateway wraps a marketdata.Gateway and retries transient failures.
type Gateway struct {
	inner  marketdata.Gateway
	logger *logrus.Logger
	config Config
}

var _ marketdata.Gateway = (*Gateway)(nil)

// NewGateway wraps the inner gateway. With no explicit config the
// defaults apply.
func NewGateway(inner marketdata.Gateway, logger *logrus.Logger, config ...Config) *Gateway {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Gateway{
		inner:  inner,
		logger: logger,
		config: cfg,
	}
}

// FetchPrices delegates to the inner gateway, retrying with backoff when
// the failure looks transient. Context cancellation aborts immediately.
func (g *Gateway) FetchPrices(ctx context.Context, symbols []string) (marketdata.PriceSnapshot, error) {
	var lastErr error
	backoff := g.config.InitialBackoff

	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}

		snapshot, err := g.inner.FetchPrices(ctx, symbols)
		if err == nil {
			return snapshot, nil
		}

		lastErr = err
		if !isTransientError(err) || attempt == g.config.MaxRetries {
			break
		}

		g.logger.Warnf("quote fetch attempt %d failed, retrying in %v: %v", attempt+1, backoff, err)
		select {
		case <-time.After(backoff):
			backoff = g.nextBackoff(backoff)
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch canceled during backoff: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("quote fetch failed after %d attempts: %w", g.config.MaxRetries+1, lastErr)
}

func (g *Gateway) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > g.config.MaxBackoff {
		backoff = g.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err == nil {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
