package engine

import (
	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/domain/strategy"
)

// PipelineConfig holds the strategy settings that do not change per cycle.
type PipelineConfig struct {
	Granularity       domain.Granularity
	VolWindow         int
	MaxPositionWeight float64
	LeverageCap       float64
	Policy            strategy.Policy
	// Whitelist restricts which symbols may receive orders. Empty means any.
	Whitelist []string
}

// PipelineInput is everything a single cycle observes.
type PipelineInput struct {
	Arm       domain.ParameterSet
	Bars      *domain.BarSeries
	Budget    float64
	Positions []domain.Position
	Prices    map[string]float64
	Regime    domain.RiskRegime
}

// Plan is the pure output of SIGNAL, SIZE and DIFF.
type Plan struct {
	RawSignals map[string]domain.Signal
	Signals    map[string]domain.Signal
	Vols       map[string]float64
	Targets    map[string]float64
	Orders     []domain.OrderDelta
	Skipped    []string
}

// BuildPlan runs signal, volatility, sizing and diff. Identical inputs always
// produce the same plan.
func BuildPlan(cfg PipelineConfig, in PipelineInput) Plan {
	window := cfg.VolWindow
	if window <= 0 {
		window = strategy.DefaultVolWindow
	}
	policy := cfg.Policy
	if policy == "" {
		policy = strategy.LongOnly
	}

	raw := strategy.GenerateSignals(in.Bars, in.Arm)
	signals := policy.Apply(raw)
	vols := strategy.EstimateVolatility(in.Bars, window, cfg.Granularity)
	targets := strategy.SizePositions(signals, vols, strategy.SizingParams{
		Budget:            in.Budget,
		VolTarget:         in.Arm.VolTarget,
		MaxPositionWeight: cfg.MaxPositionWeight,
		LeverageCap:       cfg.LeverageCap,
		Regime:            in.Regime,
	})
	orders, skipped := strategy.DiffOrders(in.Positions, targets, in.Prices, cfg.Whitelist)
	return Plan{
		RawSignals: raw,
		Signals:    signals,
		Vols:       vols,
		Targets:    targets,
		Orders:     orders,
		Skipped:    skipped,
	}
}
