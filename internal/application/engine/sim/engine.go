package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/application/engine"
	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/domain/strategy"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

const (
	DefaultInitialEquity = 100_000.0
	DefaultVIX           = 20.0

	stressEvery     = 200
	stressWarmup    = 10
	stressLowMult   = 0.97
	stressCloseMult = 0.975
	progressEvery   = 10
)

// Config holds simulation settings.
type Config struct {
	Pipeline      engine.PipelineConfig
	InitialEquity float64
	// Steps limits the simulation to the last Steps bars of the timeline. 0 simulates all.
	Steps         int
	StressTest    bool
	HoldSentiment float64
	DefaultVIX    float64
	// Sentiment is the constant sentiment score fed to the oracle on every step.
	Sentiment float64
	Session   string
}

// Engine replays historical bars through the decision pipeline with synthetic fills.
// It is single-threaded and deterministic given a deterministic ArmLearner.
type Engine struct {
	learner   engine.ArmLearner
	decisions ports.DecisionLog
	equity    ports.EquityLog
	oracle    ports.RegimeOracle
	metrics   ports.Metrics
	cfg       Config
}

// New creates a simulation engine.
func New(
	learner engine.ArmLearner,
	decisions ports.DecisionLog,
	equity ports.EquityLog,
	oracle ports.RegimeOracle,
	metrics ports.Metrics,
	cfg Config,
) *Engine {
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = DefaultInitialEquity
	}
	if cfg.DefaultVIX <= 0 {
		cfg.DefaultVIX = DefaultVIX
	}
	if cfg.HoldSentiment == 0 {
		cfg.HoldSentiment = engine.DefaultHoldSentiment
	}
	if cfg.Session == "" {
		cfg.Session = "sim"
	}
	return &Engine{
		learner:   learner,
		decisions: decisions,
		equity:    equity,
		oracle:    oracle,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Phase decides how arms are picked and whether rewards are learned.
type Phase struct {
	Mode      domain.Mode
	Selection engine.Selection
	Learn     bool
	FixedArm  domain.ParameterSet
}

var (
	// Training explores and learns.
	Training = Phase{Mode: domain.ModeSimulation, Selection: engine.SelectExplore, Learn: true}
	// Validation exploits the best arm and never learns.
	Validation = Phase{Mode: domain.ModeValidation, Selection: engine.SelectBest}
)

// DryRun replays with a fixed arm, bypassing the optimizer.
func DryRun(arm domain.ParameterSet) Phase {
	return Phase{Mode: domain.ModeDryRun, Selection: engine.SelectFixed, FixedArm: arm}
}

// Input is the market data a run replays.
type Input struct {
	Bars *domain.BarSeries
	// VIX is an optional single-symbol series used as the regime proxy.
	VIX *domain.BarSeries
}

// Result summarizes a simulation run.
type Result struct {
	Phase       domain.Mode
	Steps       int
	Trades      int
	Holds       int
	Aborted     int
	StopHits    int
	TakeProfits int
	StartEquity float64
	FinalEquity float64
	TotalReturn float64
	MaxDrawdown float64
	Curve       []domain.EquityPoint
	From, To    time.Time
	ArmsUsed    map[string]int
}

// Run simulates the last cfg.Steps steps of the timeline.
func (e *Engine) Run(ctx context.Context, in Input, phase Phase) (*Result, error) {
	timeline := in.Bars.Timeline()
	if len(timeline) < 2 {
		return nil, fmt.Errorf("sim.Run: need at least 2 timestamps, got %d", len(timeline))
	}
	start := 0
	if e.cfg.Steps > 0 && len(timeline)-1-e.cfg.Steps > 0 {
		start = len(timeline) - 1 - e.cfg.Steps
	}
	return e.runRange(ctx, in, timeline, start, len(timeline)-1, e.cfg.InitialEquity, phase)
}

// runRange simulates steps i in [from, to), each entering at timeline[i] and exiting on timeline[i+1].
func (e *Engine) runRange(ctx context.Context, in Input, timeline []time.Time, from, to int, equity float64, phase Phase) (*Result, error) {
	res := &Result{
		Phase:       phase.Mode,
		StartEquity: equity,
		From:        timeline[from],
		To:          timeline[to],
		ArmsUsed:    make(map[string]int),
	}
	peak := equity
	slog.Info("sim: start", "phase", phase.Mode, "from", res.From.Format(time.DateOnly), "to", res.To.Format(time.DateOnly), "steps", to-from)

	for i := from; i < to; i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("sim.Run: %w", err)
		}
		crash := e.cfg.StressTest && i-from > stressWarmup && i%stressEvery == 0
		if crash {
			slog.Warn("sim: flash crash injected", "at", timeline[i])
		}

		st, err := e.step(ctx, in, timeline[i], timeline[i+1], equity, crash, phase)
		res.Steps++
		if err != nil {
			res.Aborted++
			slog.Error("sim: step aborted", "run_id", st.runID, "stage", stageOf(err), "err", err)
		}
		equity += st.pnl
		res.Trades += st.trades
		if st.hold {
			res.Holds++
		}
		if st.stop {
			res.StopHits++
		}
		if st.tp {
			res.TakeProfits++
		}
		if st.arm != "" {
			res.ArmsUsed[st.arm]++
		}

		peak = max(peak, equity)
		point := domain.EquityPoint{Timestamp: timeline[i], Equity: equity}
		if peak > 0 {
			point.DrawdownPct = (peak - equity) / peak
		}
		res.Curve = append(res.Curve, point)
		res.MaxDrawdown = max(res.MaxDrawdown, point.DrawdownPct)
		if err := e.equity.AppendEquity(ctx, e.cfg.Session, point); err != nil {
			slog.Warn("sim: equity not saved", "err", err)
		}
		e.metrics.SetEquity(equity)

		if (i-from)%progressEvery == 0 {
			slog.Info("sim: progress", "date", timeline[i].Format(time.DateOnly), "equity", fmt.Sprintf("%.0f", equity), "pnl", fmt.Sprintf("%.2f", st.pnl))
		}
	}

	res.FinalEquity = equity
	if res.StartEquity > 0 {
		res.TotalReturn = (res.FinalEquity - res.StartEquity) / res.StartEquity
	}
	slog.Info("sim: done", "phase", phase.Mode, "steps", res.Steps, "final_equity", fmt.Sprintf("%.2f", res.FinalEquity),
		"return", fmt.Sprintf("%.2f%%", res.TotalReturn*100), "max_dd", fmt.Sprintf("%.2f%%", res.MaxDrawdown*100))
	return res, nil
}

type stepResult struct {
	runID    string
	arm      string
	pnl      float64
	trades   int
	hold     bool
	stop, tp bool
}

// step runs one decision cycle at t and resolves it against the bar at next.
// It always records exactly one decision, aborted or not.
func (e *Engine) step(ctx context.Context, in Input, t, next time.Time, equity float64, crash bool, phase Phase) (st stepResult, err error) {
	began := time.Now()
	st.runID = RunID(phase.Mode, t)
	stage := domain.StageSelectArm
	d := domain.Decision{RunID: st.runID, Mode: phase.Mode, Timestamp: t}

	defer func() {
		if err != nil {
			st.pnl = 0
			d.Outcome = domain.OutcomeAborted
			d.Reasoning = fmt.Sprintf("cycle aborted at %s: %v", stage, err)
			d.Reward = nil
			err = &domain.CycleAbortError{RunID: st.runID, Stage: stage, Err: err}
		}
		// un paso cancelado a medias también deja su decisión
		if _, recErr := e.decisions.AppendDecision(context.WithoutCancel(ctx), d); recErr != nil && err == nil {
			err = &domain.CycleAbortError{RunID: st.runID, Stage: domain.StageRecord, Err: recErr}
		}
		e.metrics.CycleCompleted(string(phase.Mode), d.Outcome, time.Since(began))
	}()

	arm, err := engine.SelectArm(ctx, e.learner, phase.Selection, phase.FixedArm)
	if err != nil {
		return st, err
	}
	d.Arm = arm
	st.arm = arm.Key()

	stage = domain.StageSignal
	view := in.Bars.Until(t)
	prices := make(map[string]float64)
	for _, sym := range in.Bars.Symbols() {
		if b, ok := in.Bars.At(sym, t); ok {
			prices[sym] = b.Close
		}
	}
	regime := domain.RegimeResult{}
	regime.Inputs = domain.RegimeInputs{VIXProxy: e.vixAt(in.VIX, t), Sentiment: e.cfg.Sentiment}
	regime.Regime = e.oracle.Classify(regime.Inputs)
	d.Regime = regime.Effective()

	plan := engine.BuildPlan(e.cfg.Pipeline, engine.PipelineInput{
		Arm:    arm,
		Bars:   view,
		Budget: equity,
		Prices: prices,
		Regime: regime.Effective(),
	})
	d.Signals, d.Targets = plan.Signals, plan.Targets

	stage = domain.StageGate
	gate := engine.Gate(regime, e.cfg.HoldSentiment)
	orders := plan.Orders
	if gate.Hold {
		orders = nil
		st.hold = true
	}
	d.Orders = orders
	d.Outcome = engine.Outcome(gate, orders)

	stage = domain.StageExecute
	for _, o := range orders {
		entry := prices[o.Symbol]
		nb, ok := in.Bars.At(o.Symbol, next)
		if !ok {
			slog.Warn("sim: no next bar, order skipped", "symbol", o.Symbol,
				"err", fmt.Errorf("%w: %s at %s", domain.ErrDataGap, o.Symbol, next.Format(time.RFC3339)))
			continue
		}
		if crash {
			nb.Low = entry * stressLowMult
			nb.Close = entry * stressCloseMult
		}
		side := domain.SignalLong
		if o.Side == domain.SideSell {
			side = domain.SignalShort
		}
		out := strategy.ResolveIntrabar(entry, nb, arm.StopLossPct, arm.TakeProfitPct, side)
		st.pnl += float64(o.Quantity) * entry * out.Return
		st.stop = st.stop || out.StopTriggered
		st.tp = st.tp || out.TPTriggered
		st.trades++
	}

	reward := 0.0
	if equity > 0 {
		reward = st.pnl / equity
	}
	d.Reward = &reward
	d.Reasoning = engine.AppendHold(engine.AppendOutcome(engine.Reasoning(arm, plan.Signals, regime), st.stop, st.tp), gate)

	stage = domain.StageRecord
	if phase.Learn {
		if _, err := e.learner.Update(ctx, arm, reward); err != nil {
			if !errors.Is(err, domain.ErrOptimizerInconsistency) {
				return st, err
			}
			slog.Warn("sim: reward not attributed", "run_id", st.runID, "err", err)
		} else {
			e.metrics.RewardRecorded(arm.Key(), reward)
		}
	}
	return st, nil
}

func (e *Engine) vixAt(vix *domain.BarSeries, t time.Time) float64 {
	if vix == nil {
		return e.cfg.DefaultVIX
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	view := vix.Until(day)
	for _, sym := range view.Symbols() {
		if b, ok := view.Latest(sym); ok {
			return b.Close
		}
	}
	return e.cfg.DefaultVIX
}

// RunID identifies a simulated cycle by mode and bar time.
func RunID(mode domain.Mode, t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 {
		return fmt.Sprintf("%s_%s", mode, t.Format("20060102"))
	}
	return fmt.Sprintf("%s_%s", mode, t.Format("20060102T1504"))
}

func stageOf(err error) string {
	var abort *domain.CycleAbortError
	if errors.As(err, &abort) {
		return abort.Stage
	}
	return ""
}
