package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

func TestHandleFill_EntryThenExitAttributesReward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, staticRegime{}, Config{})
	res, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-1", Symbol: "AAPL", Event: "fill", FillPrice: 100}))
	entry := h.store.ordersFor("AAPL")[0]
	assert.Equal(t, domain.OrderFilled, entry.Status)
	assert.Equal(t, 100.0, entry.EntryPrice)

	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-1-tp", ParentID: "ord-1", Symbol: "AAPL", Event: "fill", FillPrice: 102}))

	d, err := h.store.GetDecision(ctx, res.RunID)
	require.NoError(t, err)
	require.NotNil(t, d.Reward)
	assert.InDelta(t, 0.02, *d.Reward, 1e-12)

	stats, ok, err := h.store.GetArmStats(ctx, testArm.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Trials)
	assert.Equal(t, domain.OrderFilled, h.store.ordersFor("AAPL")[1].Status)
}

func TestHandleFill_UntrackedLegFallsBackToParent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, staticRegime{}, Config{})
	res, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)
	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-2", Symbol: "MSFT", Event: "fill", FillPrice: 200}))

	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "unknown-leg", ParentID: "ord-2", Symbol: "MSFT", Event: "fill", FillPrice: 196}))

	d, err := h.store.GetDecision(ctx, res.RunID)
	require.NoError(t, err)
	require.NotNil(t, d.Reward)
	assert.InDelta(t, -0.02, *d.Reward, 1e-12)
	assert.Equal(t, domain.OrderFilled, h.store.ordersFor("MSFT")[0].Status, "parent status untouched by a child update")
}

func TestHandleFill_RewardsAccumulateAcrossExits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, staticRegime{}, Config{})
	res, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-1", Symbol: "AAPL", Event: "fill", FillPrice: 100}))
	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-2", Symbol: "MSFT", Event: "fill", FillPrice: 200}))
	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-1-sl", ParentID: "ord-1", Symbol: "AAPL", Event: "fill", FillPrice: 99}))
	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-2-tp", ParentID: "ord-2", Symbol: "MSFT", Event: "fill", FillPrice: 204}))

	d, err := h.store.GetDecision(ctx, res.RunID)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, *d.Reward, 1e-12)
}

func TestHandleFill_CancelEventUpdatesStatusOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, staticRegime{}, Config{})
	_, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleFill(ctx, domain.FillEvent{OrderID: "ord-1-tp", ParentID: "ord-1", Symbol: "AAPL", Event: "canceled"}))
	assert.Equal(t, domain.OrderCanceled, h.store.ordersFor("AAPL")[1].Status)
	assert.Empty(t, h.store.stats)
}

func TestHandleFill_UnknownOrder(t *testing.T) {
	h := newHarness(t, staticRegime{}, Config{})
	err := h.engine.HandleFill(context.Background(), domain.FillEvent{OrderID: "x", Symbol: "TSLA", Event: "fill", FillPrice: 1})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSubmit_SecondCycleCancelsStaleLegs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, staticRegime{}, Config{})
	_, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)
	_, err = h.engine.RunOnce(ctx)
	require.NoError(t, err)

	recs := h.store.ordersFor("AAPL")
	require.Len(t, recs, 6)
	for _, r := range recs[:3] {
		assert.Equal(t, domain.OrderCanceled, r.Status, "first cycle's orders are superseded")
	}
	assert.Equal(t, domain.OrderSubmitted, recs[3].Status)
}

func TestRecordFeedback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, staticRegime{}, Config{})
	res, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)

	stats, err := h.engine.RecordFeedback(ctx, res.RunID, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Trials)

	_, err = h.engine.RecordFeedback(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrDecisionNotFound)
}

func TestConsumeFills_StopsOnClose(t *testing.T) {
	h := newHarness(t, staticRegime{}, Config{})
	fills := make(chan domain.FillEvent, 1)
	fills <- domain.FillEvent{OrderID: "nope", Symbol: "AAPL", Event: "new"}
	close(fills)
	assert.NoError(t, h.engine.ConsumeFills(context.Background(), fills, make(chan error)))
}
