package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/paperpilot/internal/application/engine"
	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

const (
	DefaultLookback      = 365
	DefaultRegimeTimeout = 5 * time.Second

	recordTimeout = 5 * time.Second
)

// DryRunArm is the fixed arm used when the optimizer is bypassed.
var DryRunArm = domain.ParameterSet{FastWindow: 20, SlowWindow: 60, VolTarget: 0.10}

// Config holds configuration for the live execution engine.
type Config struct {
	Symbols       []string
	Lookback      int
	Pipeline      engine.PipelineConfig
	HoldSentiment float64
	RegimeTimeout time.Duration
	// DryRun computes and records decisions with DryRunArm but never submits.
	DryRun bool
}

// Deps groups the collaborators of the live engine.
type Deps struct {
	Market    ports.MarketDataSource
	Account   ports.AccountSource
	Exec      ports.ExecutionGateway
	Regime    ports.RegimeInputSource
	Oracle    ports.RegimeOracle
	Learner   engine.ArmLearner
	Decisions ports.DecisionLog
	Orders    ports.OrderBook
	Equity    ports.EquityLog
	Notifier  ports.Notifier
	Metrics   ports.Metrics
}

// CycleResult contains everything produced by one live decision cycle.
type CycleResult struct {
	RunID     string
	Arm       domain.ParameterSet
	Regime    domain.RegimeResult
	Outcome   string
	Orders    []domain.OrderDelta
	Submitted int
	Failed    int
	Skipped   []string
	Budget    float64
}

// Engine runs decision cycles against a real broker and attributes rewards
// from asynchronous fills.
type Engine struct {
	deps Deps
	cfg  Config

	// cycleMu serializes RunOnce: cycles share optimizer and order bookkeeping.
	cycleMu sync.Mutex

	symMu    sync.Mutex
	symLocks map[string]*sync.Mutex

	newRunID func() string
	now      func() time.Time
}

// New creates a live trading engine.
func New(deps Deps, cfg Config) *Engine {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.RegimeTimeout <= 0 {
		cfg.RegimeTimeout = DefaultRegimeTimeout
	}
	if cfg.HoldSentiment == 0 {
		cfg.HoldSentiment = engine.DefaultHoldSentiment
	}
	if len(cfg.Pipeline.Whitelist) == 0 {
		cfg.Pipeline.Whitelist = cfg.Symbols
	}
	return &Engine{
		deps:     deps,
		cfg:      cfg,
		symLocks: make(map[string]*sync.Mutex),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// RunOnce executes one decision cycle. Concurrent calls run one after another.
// Every call records exactly one decision, including aborted cycles.
func (le *Engine) RunOnce(ctx context.Context) (res *CycleResult, err error) {
	le.cycleMu.Lock()
	defer le.cycleMu.Unlock()

	began := le.now()
	mode := domain.ModeLive
	if le.cfg.DryRun {
		mode = domain.ModeDryRun
	}
	res = &CycleResult{RunID: le.newRunID()}
	d := domain.Decision{RunID: res.RunID, Mode: mode, Timestamp: began}
	stage := domain.StageSelectArm
	slog.Info("live: cycle start", "run_id", res.RunID, "dry_run", le.cfg.DryRun)

	defer func() {
		if err != nil {
			d.Outcome = domain.OutcomeAborted
			d.Reasoning = fmt.Sprintf("cycle aborted at %s: %v", stage, err)
			err = &domain.CycleAbortError{RunID: res.RunID, Stage: stage, Err: err}
			slog.Error("live: cycle aborted", "run_id", res.RunID, "stage", stage, "err", err)
		}
		res.Outcome = d.Outcome
		// la decisión se graba aunque el ciclo se haya cancelado a medias
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if _, recErr := le.deps.Decisions.AppendDecision(recCtx, d); recErr != nil {
			slog.Error("live: decision not recorded", "run_id", res.RunID, "err", recErr)
			if err == nil {
				err = &domain.CycleAbortError{RunID: res.RunID, Stage: domain.StageRecord, Err: recErr}
			}
		} else if nerr := le.deps.Notifier.NotifyDecision(recCtx, d); nerr != nil {
			slog.Warn("live: notify failed", "err", nerr)
		}
		le.deps.Metrics.CycleCompleted(string(mode), d.Outcome, le.now().Sub(began))
	}()

	// 1. Arm
	sel := engine.SelectExplore
	if le.cfg.DryRun {
		sel = engine.SelectFixed
	}
	arm, err := engine.SelectArm(ctx, le.deps.Learner, sel, DryRunArm)
	if err != nil {
		return res, err
	}
	res.Arm, d.Arm = arm, arm

	// 2. Market + account snapshot
	stage = domain.StageSignal
	bars, err := le.deps.Market.GetBars(ctx, le.cfg.Symbols, le.cfg.Lookback, le.cfg.Pipeline.Granularity)
	if err != nil {
		return res, fmt.Errorf("live.RunOnce: bars: %w", err)
	}
	budget, err := le.deps.Account.GetBudget(ctx)
	if err != nil {
		return res, fmt.Errorf("live.RunOnce: budget: %w", err)
	}
	res.Budget = budget
	positions, err := le.deps.Account.GetPositions(ctx)
	if err != nil {
		return res, fmt.Errorf("live.RunOnce: positions: %w", err)
	}
	prices := le.latestPrices(ctx, bars)

	// 3. Regime, with explicit SAFE fallback
	res.Regime = engine.ResolveRegime(ctx, le.deps.Regime, le.deps.Oracle, le.cfg.RegimeTimeout)
	d.Regime = res.Regime.Effective()

	// 4. Signal, size, diff
	stage = domain.StageSize
	plan := engine.BuildPlan(le.cfg.Pipeline, engine.PipelineInput{
		Arm:       arm,
		Bars:      bars,
		Budget:    budget,
		Positions: positions,
		Prices:    prices,
		Regime:    res.Regime.Effective(),
	})
	d.Signals, d.Targets = plan.Signals, plan.Targets
	res.Skipped = plan.Skipped

	// 5. Gate
	stage = domain.StageGate
	gate := engine.Gate(res.Regime, le.cfg.HoldSentiment)
	d.Reasoning = engine.AppendHold(engine.Reasoning(arm, plan.Signals, res.Regime), gate)
	if gate.Hold {
		d.Outcome = domain.OutcomeHold
		slog.Warn("live: holding", "run_id", res.RunID, "reason", gate.Reason)
		return res, nil
	}
	d.Outcome = engine.Outcome(gate, plan.Orders)

	// 6. Execute. Rejected orders are left out of the cycle's results.
	stage = domain.StageExecute
	if le.cfg.DryRun {
		res.Orders, d.Orders = plan.Orders, plan.Orders
	} else {
		held := make(map[string]float64, len(positions))
		for _, p := range positions {
			held[p.Symbol] += p.Quantity
		}
		for _, o := range plan.Orders {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := le.submit(ctx, res.RunID, arm, o, prices[o.Symbol], held[o.Symbol]); err != nil {
				res.Failed++
				slog.Warn("live: order failed", "run_id", res.RunID, "symbol", o.Symbol, "err", err)
				continue
			}
			res.Submitted++
			res.Orders = append(res.Orders, o)
			d.Orders = res.Orders
		}
		d.Outcome = engine.Outcome(gate, res.Orders)
	}

	// 7. Record
	stage = domain.StageRecord
	if err := le.deps.Equity.AppendEquity(ctx, string(mode), domain.EquityPoint{Timestamp: began, Equity: budget}); err != nil {
		slog.Warn("live: equity not saved", "err", err)
	}
	le.deps.Metrics.SetEquity(budget)
	slog.Info("live: cycle done", "run_id", res.RunID, "arm", arm.Key(), "regime", d.Regime,
		"orders", len(plan.Orders), "submitted", res.Submitted, "failed", res.Failed)
	return res, nil
}

// latestPrices uses the last bar close and falls back to the latest trade for
// symbols whose bars are missing.
func (le *Engine) latestPrices(ctx context.Context, bars *domain.BarSeries) map[string]float64 {
	prices := bars.LatestPrices()
	for _, sym := range le.cfg.Symbols {
		if _, ok := prices[sym]; ok {
			continue
		}
		px, err := le.deps.Market.GetLatestPrice(ctx, sym)
		if err != nil {
			slog.Warn("live: no price", "symbol", sym, "err", errors.Join(domain.ErrDataGap, err))
			continue
		}
		prices[sym] = px
	}
	return prices
}

func (le *Engine) symbolLock(symbol string) *sync.Mutex {
	le.symMu.Lock()
	defer le.symMu.Unlock()
	l, ok := le.symLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		le.symLocks[symbol] = l
	}
	return l
}
