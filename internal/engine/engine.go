// Package engine owns the mutable application state and serializes every
// calculation over it. Input changes are debounced: each change resets a
// pending timer and only the most recent schedule fires, feeding a single
// worker goroutine that fetches quotes once and recomputes everything.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vectorprofit/collarroll/internal/chain"
	"github.com/vectorprofit/collarroll/internal/goalseek"
	"github.com/vectorprofit/collarroll/internal/marketdata"
	"github.com/vectorprofit/collarroll/internal/models"
	"github.com/vectorprofit/collarroll/internal/payout"
	"github.com/vectorprofit/collarroll/internal/rollover"
	"github.com/vectorprofit/collarroll/internal/storage"
)

// Config tunes the engine. Zero values take the defaults.
type Config struct {
	// Debounce is the quiet interval after an input change before the
	// recompute fires.
	Debounce time.Duration
	// FetchTimeout bounds one quote-gateway round trip.
	FetchTimeout time.Duration
	// PayoutRange is the sampled price-change interval for the curves.
	PayoutRange payout.Range
	// Solver tunes the goal-seek searches.
	Solver goalseek.Config
}

const (
	defaultDebounce     = 250 * time.Millisecond
	defaultFetchTimeout = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.PayoutRange.Samples <= 0 {
		c.PayoutRange = payout.DefaultRange()
	}
	return c
}

// Inputs is the transient user-facing state: the assembly sizing under
// simulation, the partial unwind and the solver targets.
type Inputs struct {
	Assembly     models.StrategyParams   `json:"assembly"`
	Unwind       models.UnwindQuantities `json:"unwind"`
	TargetProfit float64                 `json:"target_profit"`
	TargetFlow   float64                 `json:"target_flow"`
}

// Engine serializes all position mutations and calculations. Operations
// mutate state under the lock; the recompute pipeline runs on the worker
// goroutine fed by the debounced scheduler.
type Engine struct {
	cfg     Config
	logger  *logrus.Logger
	gateway marketdata.Gateway
	store   storage.Interface
	chains  *chain.Source

	mu     sync.Mutex
	view   storage.Slot
	pair   *models.OptionPair
	inputs Inputs
	report Report

	timerMu sync.Mutex
	timer   *time.Timer
	kick    chan struct{}
}

// New builds an engine over its collaborators. The chain source may be
// nil when no chain file is configured; pair selection then only accepts
// pairs supplied verbatim.
func New(cfg Config, gateway marketdata.Gateway, store storage.Interface, chains *chain.Source, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		gateway: gateway,
		store:   store,
		chains:  chains,
		view:    storage.SlotMain,
		kick:    make(chan struct{}, 1),
	}
}

// Run executes the worker loop until the context is canceled. An initial
// recompute runs immediately.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine worker started")
	e.kickNow()

	for {
		select {
		case <-ctx.Done():
			e.stopTimer()
			e.logger.Info("engine worker stopped")
			return nil
		case <-e.kick:
			e.recompute(ctx)
		}
	}
}

// Trigger schedules a recompute after the quiet interval. A newer trigger
// supersedes any pending one, so only the most recent schedule fires.
func (e *Engine) Trigger() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.cfg.Debounce, e.kickNow)
}

// kickNow hands the worker a recompute request. The mailbox holds one
// slot; a request already pending absorbs the new one.
func (e *Engine) kickNow() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

func (e *Engine) stopTimer() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// View returns the active position view.
func (e *Engine) View() storage.Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// SetView switches the active position view and seeds the unwind
// defaults from the freshly loaded position.
func (e *Engine) SetView(slot storage.Slot) error {
	if !slot.Valid() && slot != storage.SlotCombined {
		return fmt.Errorf("%w: %q", storage.ErrUnknownSlot, slot)
	}
	pos, err := e.loadView(slot)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.view = slot
	e.inputs.Unwind = unwindDefaults(pos)
	e.mu.Unlock()

	e.Trigger()
	return nil
}

// SelectPair sets the rollover candidate. The assembly strike follows the
// pair.
func (e *Engine) SelectPair(pair models.OptionPair) error {
	if !pair.Complete() {
		return fmt.Errorf("%w: incomplete option pair", models.ErrInvalidInput)
	}

	e.mu.Lock()
	p := pair
	e.pair = &p
	e.inputs.Assembly.Strike = pair.Strike
	e.mu.Unlock()

	e.Trigger()
	return nil
}

// UpdateInputs replaces the transient inputs and schedules a debounced
// recompute.
func (e *Engine) UpdateInputs(in Inputs) error {
	if err := in.Assembly.Validate(); err != nil {
		return err
	}
	if err := in.Unwind.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.pair != nil && in.Assembly.Strike == 0 {
		in.Assembly.Strike = e.pair.Strike
	}
	e.inputs = in
	e.mu.Unlock()

	e.Trigger()
	return nil
}

// Inputs returns a copy of the current transient inputs.
func (e *Engine) Inputs() Inputs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputs
}

// Chains exposes the option-chain source; nil when none is configured.
func (e *Engine) Chains() *chain.Source {
	return e.chains
}

// Assemble folds the current assembly inputs into a slot's position using
// the selected pair's tickers. A brand-new position gets a fresh ID.
func (e *Engine) Assemble(slot storage.Slot) (models.Position, error) {
	e.mu.Lock()
	pair := e.pair
	params := e.inputs.Assembly
	e.mu.Unlock()

	if pair == nil {
		return models.Position{}, fmt.Errorf("%w: no option pair selected", models.ErrInvalidInput)
	}
	if err := params.Validate(); err != nil {
		return models.Position{}, err
	}

	existing, err := e.store.LoadSlot(slot)
	if err != nil {
		return models.Position{}, err
	}

	merged, err := models.Assemble(existing, params.ToPosition(*pair))
	if err != nil {
		return models.Position{}, err
	}
	if merged.ID == "" {
		merged.ID = uuid.NewString()
	}
	if err := merged.Validate(); err != nil {
		return models.Position{}, err
	}
	if err := e.store.SaveSlot(slot, merged); err != nil {
		return models.Position{}, err
	}

	e.logger.WithFields(logrus.Fields{
		"slot":  slot,
		"id":    merged.ID,
		"asset": merged.Tickers.Asset,
	}).Info("position assembled")

	e.mu.Lock()
	if e.view == slot || e.view == storage.SlotCombined {
		e.inputs.Unwind = unwindDefaults(merged)
	}
	e.mu.Unlock()

	e.Trigger()
	return merged, nil
}

// Reset empties a slot's position.
func (e *Engine) Reset(slot storage.Slot) error {
	if err := e.store.ResetSlot(slot); err != nil {
		return err
	}
	e.logger.WithField("slot", slot).Info("position reset")

	e.mu.Lock()
	if e.view == slot {
		e.inputs.Unwind = models.UnwindQuantities{}
	}
	e.mu.Unlock()

	e.Trigger()
	return nil
}

// GoalSeekFlow sizes the assembly so the rollover's D+2 flow hits target.
// Quotes are fetched once, before the iteration; the rounded legs are
// written back into the assembly inputs regardless of convergence, the
// caller decides what to surface.
func (e *Engine) GoalSeekFlow(ctx context.Context, target float64) (goalseek.Result, error) {
	e.mu.Lock()
	pair := e.pair
	in := e.inputs
	view := e.view
	e.mu.Unlock()

	if pair == nil {
		return goalseek.Result{}, fmt.Errorf("%w: no option pair selected", models.ErrInvalidInput)
	}
	pos, err := e.loadView(view)
	if err != nil {
		return goalseek.Result{}, err
	}
	if err := in.Unwind.CheckAgainst(pos); err != nil {
		return goalseek.Result{}, err
	}

	prices, err := e.fetch(ctx, symbolsFor(pos, pair))
	if err != nil {
		return goalseek.Result{}, err
	}

	obj := func(legs rollover.Quantities) (float64, error) {
		flow, err := rollover.D2Flow(legs, in.Unwind, prices, pos, *pair)
		if err != nil {
			return 0, err
		}
		return flow.Total, nil
	}

	res, err := goalseek.SolveQuantity(obj, target, assemblyQuantities(in.Assembly), e.cfg.Solver)
	if err != nil {
		return goalseek.Result{}, err
	}
	if res.Outcome != goalseek.OutcomeNoSolution {
		e.applySolvedQuantities(res)
	}

	e.logger.WithFields(logrus.Fields{
		"target":     target,
		"outcome":    res.Outcome,
		"iterations": res.Iterations,
	}).Info("flow goal-seek finished")
	return res, nil
}

// GoalSeekProfit sizes the rollover for a target profit on the unwound
// legs plus a target D+2 flow, using the closed-form price-improvement
// factor followed by the quantity search.
func (e *Engine) GoalSeekProfit(ctx context.Context, targetProfit, targetFlow float64) (goalseek.ProfitResult, error) {
	e.mu.Lock()
	pair := e.pair
	in := e.inputs
	view := e.view
	e.mu.Unlock()

	if pair == nil {
		return goalseek.ProfitResult{}, fmt.Errorf("%w: no option pair selected", models.ErrInvalidInput)
	}
	pos, err := e.loadView(view)
	if err != nil {
		return goalseek.ProfitResult{}, err
	}

	// Capacity is checked before the quote fetch: an over-sized unwind is
	// refused without touching market data.
	if in.Unwind.Total() == 0 {
		return goalseek.ProfitResult{}, fmt.Errorf("%w: unwind quantities are all zero", models.ErrInvalidInput)
	}
	if err := in.Unwind.CheckAgainst(pos); err != nil {
		return goalseek.ProfitResult{}, err
	}

	prices, err := e.fetch(ctx, symbolsFor(pos, pair))
	if err != nil {
		return goalseek.ProfitResult{}, err
	}

	res, err := goalseek.SolveTargetProfit(goalseek.ProfitRequest{
		TargetProfit: targetProfit,
		TargetFlow:   targetFlow,
		Base:         assemblyQuantities(in.Assembly),
		Unwind:       in.Unwind,
		Position:     pos,
		Pair:         *pair,
		Prices:       prices,
	}, e.cfg.Solver)
	if err != nil {
		return goalseek.ProfitResult{}, err
	}
	if res.Outcome != goalseek.OutcomeNoSolution {
		e.applySolvedQuantities(res.Result)
	}

	e.logger.WithFields(logrus.Fields{
		"target_profit": targetProfit,
		"target_flow":   targetFlow,
		"factor":        res.ImprovementFactor,
		"outcome":       res.Outcome,
	}).Info("profit goal-seek finished")
	return res, nil
}

// TargetProfitFromPercent converts a percent-of-assembly-cost target into
// currency against the current view's position.
func (e *Engine) TargetProfitFromPercent(pct float64) (float64, error) {
	pos, err := e.loadView(e.View())
	if err != nil {
		return 0, err
	}
	return math.Abs(pos.AssemblyCost()) * pct / 100, nil
}

// TargetProfitPercent converts a currency target back into a percentage
// of the current view's assembly cost; zero when the cost is zero.
func (e *Engine) TargetProfitPercent(target float64) (float64, error) {
	pos, err := e.loadView(e.View())
	if err != nil {
		return 0, err
	}
	cost := math.Abs(pos.AssemblyCost())
	if cost == 0 {
		return 0, nil
	}
	return target / cost * 100, nil
}

func (e *Engine) applySolvedQuantities(res goalseek.Result) {
	e.mu.Lock()
	e.inputs.Assembly.AssetQty = res.AssetQty
	e.inputs.Assembly.CallQty = res.CallQty
	e.inputs.Assembly.PutQty = res.PutQty
	e.mu.Unlock()
	e.Trigger()
}

// LoadPosition resolves a slot to its position, including the combined
// view.
func (e *Engine) LoadPosition(slot storage.Slot) (models.Position, error) {
	return e.loadView(slot)
}

// Spot fetches the underlying's live price: the ask, or the bid when no
// ask is quoted.
func (e *Engine) Spot(ctx context.Context, asset string) (float64, error) {
	prices, err := e.fetch(ctx, []string{asset})
	if err != nil {
		return 0, err
	}
	if ask, ok := prices.Ask(asset); ok {
		return ask, nil
	}
	if bid, ok := prices.Bid(asset); ok {
		return bid, nil
	}
	return 0, fmt.Errorf("%w: %s", rollover.ErrMissingQuote, asset)
}

// loadView resolves a slot to its position, merging the two books for the
// combined view and logging when their underlyings disagree.
func (e *Engine) loadView(slot storage.Slot) (models.Position, error) {
	if slot != storage.SlotCombined {
		return e.store.LoadSlot(slot)
	}

	main, err := e.store.LoadSlot(storage.SlotMain)
	if err != nil {
		return models.Position{}, err
	}
	roll, err := e.store.LoadSlot(storage.SlotRollover)
	if err != nil {
		return models.Position{}, err
	}
	if !main.Empty() && !roll.Empty() && main.Tickers.Asset != roll.Tickers.Asset {
		e.logger.WithFields(logrus.Fields{
			"main":     main.Tickers.Asset,
			"rollover": roll.Tickers.Asset,
		}).Warn("combined view blends different underlyings")
	}
	return models.Combine(main, roll), nil
}

func (e *Engine) fetch(ctx context.Context, symbols []string) (marketdata.PriceSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	return e.gateway.FetchPrices(ctx, symbols)
}

// unwindDefaults mirrors the held leg magnitudes, the usual starting
// point for a full roll.
func unwindDefaults(pos models.Position) models.UnwindQuantities {
	return models.UnwindQuantities{
		AssetQty: pos.Asset.Quantity,
		CallQty:  pos.Call.Quantity,
		PutQty:   pos.Put.Quantity,
	}
}

func assemblyQuantities(p models.StrategyParams) rollover.Quantities {
	return rollover.Quantities{
		AssetQty: float64(p.AssetQty),
		CallQty:  float64(p.CallQty),
		PutQty:   float64(p.PutQty),
	}
}

// symbolsFor collects the distinct symbols of the position and the pair.
func symbolsFor(pos models.Position, pair *models.OptionPair) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(syms []string) {
		for _, s := range syms {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	add(pos.Tickers.Symbols())
	if pair != nil {
		add(pair.Symbols())
	}
	return out
}
