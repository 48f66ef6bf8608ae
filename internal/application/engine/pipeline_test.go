package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/domain/strategy"
)

func trendSeries() *domain.BarSeries {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	for i, c := range []float64{100, 102, 105} {
		bars = append(bars, domain.Bar{Symbol: "SPY", Timestamp: t0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c})
	}
	return domain.NewBarSeries(bars)
}

func TestBuildPlan_EndToEndDeterministic(t *testing.T) {
	cfg := PipelineConfig{Granularity: domain.Daily, VolWindow: 2}
	in := PipelineInput{
		Arm:    domain.ParameterSet{FastWindow: 2, SlowWindow: 3, VolTarget: 0.1, SignalThreshold: 0.0005},
		Bars:   trendSeries(),
		Budget: 10_000,
		Prices: map[string]float64{"SPY": 105},
		Regime: domain.RegimeSafe,
	}

	plan := BuildPlan(cfg, in)
	require.Equal(t, domain.SignalLong, plan.Signals["SPY"])
	require.Len(t, plan.Orders, 1)
	want := strategy.TargetQuantity(plan.Targets["SPY"], 105)
	assert.Equal(t, domain.OrderDelta{Symbol: "SPY", Side: domain.SideBuy, Quantity: want}, plan.Orders[0])
	assert.Equal(t, int64(47), want, "weight clamps to 0.5 of 10k at 105")

	again := BuildPlan(cfg, in)
	assert.Equal(t, plan.Orders, again.Orders)
	assert.Equal(t, plan.Targets, again.Targets)
}

func TestBuildPlan_LongOnlyDropsShorts(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	for i, c := range []float64{105, 102, 100} {
		bars = append(bars, domain.Bar{Symbol: "QQQ", Timestamp: t0.AddDate(0, 0, i), Close: c})
	}
	in := PipelineInput{
		Arm:    domain.ParameterSet{FastWindow: 2, SlowWindow: 3, VolTarget: 0.1, SignalThreshold: 0.0005},
		Bars:   domain.NewBarSeries(bars),
		Budget: 10_000,
		Prices: map[string]float64{"QQQ": 100},
	}

	plan := BuildPlan(PipelineConfig{Granularity: domain.Daily, VolWindow: 2}, in)
	assert.Equal(t, domain.SignalShort, plan.RawSignals["QQQ"])
	assert.Equal(t, domain.SignalFlat, plan.Signals["QQQ"])
	assert.Empty(t, plan.Orders)

	plan = BuildPlan(PipelineConfig{Granularity: domain.Daily, VolWindow: 2, Policy: strategy.LongShort}, in)
	require.Len(t, plan.Orders, 1)
	assert.Equal(t, domain.SideSell, plan.Orders[0].Side)
}

func TestGate(t *testing.T) {
	assert.True(t, Gate(domain.RegimeResult{Regime: domain.RegimeCrisis}, -0.3).Hold)
	assert.False(t, Gate(domain.RegimeResult{Regime: domain.RegimeSafe, Inputs: domain.RegimeInputs{Sentiment: -0.4}}, -0.3).Hold)
	assert.True(t, Gate(domain.RegimeResult{Regime: domain.RegimeShieldActive, Inputs: domain.RegimeInputs{Sentiment: -0.6}}, -0.3).Hold)
	assert.False(t, Gate(domain.RegimeResult{Regime: domain.RegimeShieldActive, Inputs: domain.RegimeInputs{Sentiment: 0.1}}, -0.3).Hold)
	assert.False(t, Gate(domain.RegimeResult{Regime: domain.RegimeCrisis, Err: domain.ErrRegimeUnavailable}, -0.3).Hold,
		"unavailable regime falls back to SAFE")
}

type inputsFunc func(ctx context.Context) (domain.RegimeInputs, error)

func (f inputsFunc) RegimeInputs(ctx context.Context) (domain.RegimeInputs, error) { return f(ctx) }

type vixOracle struct{}

func (vixOracle) Classify(in domain.RegimeInputs) domain.RiskRegime {
	if in.VIXProxy >= 30 {
		return domain.RegimeCrisis
	}
	return domain.RegimeSafe
}

func TestResolveRegime(t *testing.T) {
	ctx := context.Background()
	ok := ResolveRegime(ctx, inputsFunc(func(context.Context) (domain.RegimeInputs, error) {
		return domain.RegimeInputs{VIXProxy: 35}, nil
	}), vixOracle{}, time.Second)
	assert.NoError(t, ok.Err)
	assert.Equal(t, domain.RegimeCrisis, ok.Effective())

	slow := ResolveRegime(ctx, inputsFunc(func(ctx context.Context) (domain.RegimeInputs, error) {
		<-ctx.Done()
		return domain.RegimeInputs{}, ctx.Err()
	}), vixOracle{}, 10*time.Millisecond)
	assert.True(t, errors.Is(slow.Err, domain.ErrRegimeUnavailable))
	assert.Equal(t, domain.RegimeSafe, slow.Effective())
}

func TestReasoning(t *testing.T) {
	arm := domain.ParameterSet{FastWindow: 5, SlowWindow: 15, VolTarget: 0.4}
	got := Reasoning(arm, map[string]domain.Signal{"QQQ": 0, "AAPL": 1, "TSLA": -1}, domain.RegimeResult{Regime: domain.RegimeSafe})
	assert.Equal(t, "Strategy: TS_MOM | Params: 5/15 | VolTarget: 0.4 | Regime: SAFE | Rational: "+
		"LONG AAPL (Momentum Positive); FLAT QQQ (No Trend); SHORT TSLA (Momentum Negative)", got)
	assert.Contains(t, AppendOutcome(got, true, false), "STOP LOSS TRIGGERED")
}

type fixedLearner struct {
	choose, best domain.ParameterSet
	err          error
}

func (f fixedLearner) Choose(context.Context) (domain.ParameterSet, error) { return f.choose, f.err }
func (f fixedLearner) Best(context.Context) (domain.ParameterSet, error)   { return f.best, f.err }
func (f fixedLearner) Update(context.Context, domain.ParameterSet, float64) (domain.ArmStatistics, error) {
	return domain.ArmStatistics{}, nil
}
func (f fixedLearner) AddArms([]domain.ParameterSet) int { return 0 }

func TestSelectArm(t *testing.T) {
	ctx := context.Background()
	l := fixedLearner{
		choose: domain.ParameterSet{FastWindow: 1, SlowWindow: 2, VolTarget: 0.1},
		best:   domain.ParameterSet{FastWindow: 3, SlowWindow: 4, VolTarget: 0.1},
	}
	fixed := domain.ParameterSet{FastWindow: 20, SlowWindow: 60, VolTarget: 0.1}

	arm, err := SelectArm(ctx, l, SelectExplore, fixed)
	require.NoError(t, err)
	assert.Equal(t, 1, arm.FastWindow)
	assert.Equal(t, domain.DefaultStopLossPct, arm.StopLossPct)

	arm, _ = SelectArm(ctx, l, SelectBest, fixed)
	assert.Equal(t, 3, arm.FastWindow)
	arm, _ = SelectArm(ctx, l, SelectFixed, fixed)
	assert.Equal(t, 20, arm.FastWindow)

	_, err = SelectArm(ctx, fixedLearner{err: domain.ErrNoArms}, SelectExplore, fixed)
	assert.ErrorIs(t, err, domain.ErrNoArms)
}
