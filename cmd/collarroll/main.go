package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vectorprofit/collarroll/internal/chain"
	"github.com/vectorprofit/collarroll/internal/config"
	"github.com/vectorprofit/collarroll/internal/dashboard"
	"github.com/vectorprofit/collarroll/internal/engine"
	"github.com/vectorprofit/collarroll/internal/goalseek"
	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/mock"
	"github.com/vectorprofit/collarroll/internal/payout"
	"github.com/vectorprofit/collarroll/internal/retry"
	"github.com/vectorprofit/collarroll/internal/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.WithField("mode", cfg.Environment.Mode).Info("Starting collarroll")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("collarroll stopped with error")
	}
	logger.Info("collarroll stopped")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	gateway := newGateway(cfg, store, logger)

	var chains *chain.Source
	if cfg.Chain.Path != "" {
		chains, err = chain.Load(cfg.Chain.Path)
		if err != nil {
			// Missing chain file is not fatal: pairs can still be
			// entered by hand through the dashboard.
			logger.WithError(err).WithField("path", cfg.Chain.Path).
				Warn("Option chain unavailable")
			chains = nil
		} else {
			logger.WithField("assets", chains.Assets()).Info("Option chain loaded")
		}
	}

	eng := engine.New(engineConfig(cfg), gateway, store, chains, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(ctx)
	})

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(dashboard.Config{
			Port:      cfg.Dashboard.Port,
			AuthToken: cfg.Dashboard.AuthToken,
		}, eng, logger)

		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.WithField("port", cfg.Dashboard.Port).Info("Dashboard listening")
	}

	return g.Wait()
}

func newGateway(cfg *config.Config, store storage.Interface, logger *logrus.Logger) marketdata.Gateway {
	if cfg.IsPaperTrading() && cfg.Gateway.Endpoint == "" {
		logger.Info("Paper mode without gateway endpoint, simulating quotes")
		return mock.NewQuoteSimulator(paperAnchors(store))
	}

	bridge := marketdata.NewBridgeClient(cfg.Gateway.Endpoint, logger,
		marketdata.WithHTTPClient(&http.Client{Timeout: cfg.GetGatewayTimeout()}))
	retrying := retry.NewGateway(bridge, logger)

	settings := marketdata.CircuitBreakerSettings{
		MaxRequests:  2,
		Interval:     30 * time.Second,
		Timeout:      time.Duration(cfg.Gateway.CooldownSeconds) * time.Second,
		MinRequests:  4,
		FailureRatio: 0.6,
	}
	if cfg.Gateway.MaxFailures > 0 {
		settings.MinRequests = cfg.Gateway.MaxFailures
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	return marketdata.NewCircuitBreakerGatewayWithSettings(retrying, logger, settings)
}

// paperAnchors seeds the simulator from whatever positions are already
// on disk, so a saved collar immediately quotes near its book prices.
func paperAnchors(store storage.Interface) map[string]float64 {
	anchors := make(map[string]float64)
	for _, slot := range []storage.Slot{storage.SlotMain, storage.SlotRollover} {
		pos, err := store.LoadSlot(slot)
		if err != nil || pos.Empty() {
			continue
		}
		anchors[pos.Tickers.Asset] = pos.Asset.AvgPrice
		anchors[pos.Tickers.Call] = pos.Call.AvgPrice
		anchors[pos.Tickers.Put] = pos.Put.AvgPrice
	}
	return anchors
}

func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.Config{
		Debounce:     cfg.GetDebounce(),
		FetchTimeout: cfg.GetGatewayTimeout(),
		Solver: goalseek.Config{
			Tolerance:     cfg.Solver.Tolerance,
			MaxIterations: cfg.Solver.MaxIterations,
			Damping:       cfg.Solver.Damping,
			LotSize:       cfg.Solver.LotSize,
		},
	}
	if cfg.Engine.PayoutMinPct != 0 || cfg.Engine.PayoutMaxPct != 0 {
		ec.PayoutRange = payout.Range{
			Min:     cfg.Engine.PayoutMinPct,
			Max:     cfg.Engine.PayoutMaxPct,
			Samples: cfg.Engine.PayoutPoints,
		}
	}
	return ec
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Environment.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Environment.LogFile,
			MaxSize:    cfg.Environment.LogMaxSizeMB,
			MaxBackups: cfg.Environment.LogMaxBackups,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}
	return logger
}
