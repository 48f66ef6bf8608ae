package sim

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/paperpilot/internal/adapters/storage"
	"github.com/alejandrodnm/paperpilot/internal/application/engine"
	"github.com/alejandrodnm/paperpilot/internal/application/optimizer"
	"github.com/alejandrodnm/paperpilot/internal/domain"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// uptrend builds n daily bars climbing ~0.3% a day with a small wiggle.
func uptrend(sym string, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := 100.0
	for i := range bars {
		wiggle := 0.001 * math.Sin(float64(i))
		price *= 1.003 + wiggle
		bars[i] = domain.Bar{
			Symbol: sym, Timestamp: day0.AddDate(0, 0, i),
			Open: price, High: price * 1.002, Low: price * 0.998, Close: price, Volume: 1e6,
		}
	}
	return bars
}

var testArm = domain.ParameterSet{FastWindow: 3, SlowWindow: 8, VolTarget: 0.1}

func newTestEngine(t *testing.T, store *memStore, oracle fixedOracle, cfg Config) (*Engine, *optimizer.Optimizer) {
	t.Helper()
	opt, err := optimizer.New(context.Background(), store, 0.2,
		[]domain.ParameterSet{testArm, {FastWindow: 5, SlowWindow: 15, VolTarget: 0.2}},
		optimizer.WithRand(rand.New(rand.NewPCG(7, 7))))
	require.NoError(t, err)
	cfg.Pipeline = engine.PipelineConfig{Granularity: domain.Daily, VolWindow: 5}
	return New(opt, store, store, oracle, nopMetrics{}, cfg), opt
}

func TestRun_DryRunRecordsEveryStep(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, store, fixedOracle(domain.RegimeSafe), Config{Steps: 20})

	res, err := e.Run(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 40))}, DryRun(testArm))
	require.NoError(t, err)

	assert.Equal(t, 20, res.Steps)
	assert.Len(t, store.decisions, 20)
	assert.Positive(t, res.Trades)
	assert.Greater(t, res.FinalEquity, res.StartEquity)
	assert.Equal(t, 0, store.totalTrials(), "dry run never learns")
	assert.Len(t, store.equity["sim"], 20)

	d, err := store.GetDecision(context.Background(), "dry_run_20230203")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTraded, d.Outcome)
	assert.True(t, strings.HasPrefix(d.Reasoning, "Strategy: TS_MOM | Params: 3/8"))
	require.NotNil(t, d.Reward)
}

func TestRun_IsDeterministic(t *testing.T) {
	in := Input{Bars: domain.NewBarSeries(uptrend("SPY", 40))}
	a, _ := newTestEngine(t, newMemStore(), fixedOracle(domain.RegimeSafe), Config{Steps: 20})
	b, _ := newTestEngine(t, newMemStore(), fixedOracle(domain.RegimeSafe), Config{Steps: 20})

	ra, err := a.Run(context.Background(), in, DryRun(testArm))
	require.NoError(t, err)
	rb, err := b.Run(context.Background(), in, DryRun(testArm))
	require.NoError(t, err)
	assert.Equal(t, ra.Curve, rb.Curve)
}

func TestRun_TrainingLearnsOncePerStep(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, store, fixedOracle(domain.RegimeSafe), Config{Steps: 15})

	res, err := e.Run(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 40))}, Training)
	require.NoError(t, err)
	assert.Equal(t, res.Steps, store.totalTrials())
}

func TestRun_CrisisHoldsEverything(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, store, fixedOracle(domain.RegimeCrisis), Config{Steps: 10})

	res, err := e.Run(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 40))}, DryRun(testArm))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Holds)
	assert.Zero(t, res.Trades)
	assert.Equal(t, res.StartEquity, res.FinalEquity)
	for _, d := range store.decisions {
		assert.Equal(t, domain.OutcomeHold, d.Outcome)
		assert.Empty(t, d.Orders)
		assert.Contains(t, d.Reasoning, "HOLD: CRISIS")
	}
}

func TestRun_StressTestTriggersStopLoss(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, store, fixedOracle(domain.RegimeSafe), Config{StressTest: true})

	res, err := e.Run(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 260))}, DryRun(testArm))
	require.NoError(t, err)
	assert.Equal(t, 1, res.StopHits, "one crash at step 200")

	d, err := store.GetDecision(context.Background(), RunID(domain.ModeDryRun, day0.AddDate(0, 0, 200)))
	require.NoError(t, err)
	assert.Contains(t, d.Reasoning, "STOP LOSS TRIGGERED")
	require.NotNil(t, d.Reward)
	assert.Negative(t, *d.Reward)
}

type failingLearner struct{ engine.ArmLearner }

func (failingLearner) Choose(context.Context) (domain.ParameterSet, error) {
	return domain.ParameterSet{}, errors.New("stats unavailable")
}

func TestRun_AbortedStepsStillRecordDecision(t *testing.T) {
	store := newMemStore()
	e := New(failingLearner{}, store, store, fixedOracle(domain.RegimeSafe), nopMetrics{}, Config{Steps: 5})

	res, err := e.Run(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 20))}, Training)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Aborted)
	assert.Len(t, store.decisions, 5)
	for _, d := range store.decisions {
		assert.Equal(t, domain.OutcomeAborted, d.Outcome)
		assert.Nil(t, d.Reward)
		assert.Contains(t, d.Reasoning, domain.StageSelectArm)
	}
}

// cancelingLearner cancela la simulación en mitad del primer paso.
type cancelingLearner struct {
	engine.ArmLearner
	cancel context.CancelFunc
}

func (l cancelingLearner) Choose(ctx context.Context) (domain.ParameterSet, error) {
	l.cancel()
	return domain.ParameterSet{}, ctx.Err()
}

func TestRun_CanceledStepStillRecordsDecision(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(cancelingLearner{cancel: cancel}, db, db, fixedOracle(domain.RegimeSafe), nopMetrics{}, Config{Steps: 5})

	res, err := e.Run(ctx, Input{Bars: domain.NewBarSeries(uptrend("SPY", 20))}, Training)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, 1, res.Aborted)

	// 20 barras y 5 pasos: el primer paso es la barra 14
	d, err := db.GetDecision(context.Background(), RunID(domain.ModeSimulation, day0.AddDate(0, 0, 14)))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAborted, d.Outcome)
	assert.Contains(t, d.Reasoning, domain.StageSelectArm)
}

func TestWalkForward_ValidationDoesNotLearn(t *testing.T) {
	store := newMemStore()
	e, _ := newTestEngine(t, store, fixedOracle(domain.RegimeSafe), Config{Steps: 40})

	wf, err := e.WalkForward(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 60))}, WalkForwardConfig{ValidationSteps: 10})
	require.NoError(t, err)
	assert.Equal(t, 30, wf.Train.Steps)
	assert.Equal(t, 10, wf.Validation.Steps)
	assert.Equal(t, domain.ModeValidation, wf.Validation.Phase)
	assert.Equal(t, 30, store.totalTrials())
	assert.Len(t, wf.Validation.ArmsUsed, 1, "validation locks a single arm")
}

func TestWalkForward_RefineAddsNeighbours(t *testing.T) {
	store := newMemStore()
	e, opt := newTestEngine(t, store, fixedOracle(domain.RegimeSafe), Config{Steps: 40})
	before := len(opt.Arms())

	wf, err := e.WalkForward(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 60))}, WalkForwardConfig{ValidationSteps: 10, Refine: true})
	require.NoError(t, err)
	require.NotNil(t, wf.Refine)
	assert.Greater(t, len(opt.Arms()), before)
	assert.Equal(t, 60, store.totalTrials())
}

func TestWalkForward_RejectsEmptyTraining(t *testing.T) {
	e, _ := newTestEngine(t, newMemStore(), fixedOracle(domain.RegimeSafe), Config{Steps: 10})
	_, err := e.WalkForward(context.Background(), Input{Bars: domain.NewBarSeries(uptrend("SPY", 30))}, WalkForwardConfig{ValidationSteps: 10})
	assert.Error(t, err)
}
