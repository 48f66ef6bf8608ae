package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/domain/strategy"
)

// submit cancels stale orders for the symbol and places the new one.
// Orders that open or extend exposure carry a stop-loss/take-profit bracket;
// orders that only reduce a holding go out plain.
func (le *Engine) submit(ctx context.Context, runID string, arm domain.ParameterSet, o domain.OrderDelta, price, held float64) error {
	lock := le.symbolLock(o.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if err := le.deps.Exec.CancelOpenOrders(ctx, o.Symbol); err != nil {
		slog.Warn("live: cancel stale orders failed", "symbol", o.Symbol, "err", err)
	}
	le.markOpenCanceled(ctx, o.Symbol)

	rec := domain.OrderRecord{
		RunID:     runID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Quantity:  o.Quantity,
		Status:    domain.OrderPlanned,
		CreatedAt: le.now(),
	}
	id, err := le.deps.Orders.SaveOrder(ctx, rec)
	if err != nil {
		return fmt.Errorf("live.submit: save %s: %w", o.Symbol, err)
	}
	rec.ID = id

	var bracket *domain.Bracket
	if opensExposure(o.Side, held) && price > 0 {
		b := strategy.BracketPrices(o.Side, price, arm.StopLossPct, arm.TakeProfitPct)
		bracket = &b
	}

	sub, err := le.deps.Exec.Submit(ctx, o, bracket)
	if err != nil {
		rec.Status = domain.OrderFailed
		if uerr := le.deps.Orders.UpdateOrder(ctx, rec); uerr != nil {
			slog.Warn("live: order status not saved", "symbol", o.Symbol, "err", uerr)
		}
		le.deps.Metrics.OrderSubmitted(o.Symbol, false)
		return fmt.Errorf("%w: %s %s %d: %v", domain.ErrSubmission, o.Side, o.Symbol, o.Quantity, err)
	}
	le.deps.Metrics.OrderSubmitted(o.Symbol, true)

	rec.Status = domain.OrderSubmitted
	rec.BrokerID = sub.ID
	if err := le.deps.Orders.UpdateOrder(ctx, rec); err != nil {
		slog.Warn("live: order status not saved", "symbol", o.Symbol, "broker_id", sub.ID, "err", err)
	}
	for _, legID := range sub.LegIDs {
		leg := domain.OrderRecord{
			RunID:     runID,
			Symbol:    o.Symbol,
			Side:      opposite(o.Side),
			Quantity:  o.Quantity,
			Status:    domain.OrderSubmitted,
			BrokerID:  legID,
			ParentID:  sub.ID,
			CreatedAt: rec.CreatedAt,
		}
		if _, err := le.deps.Orders.SaveOrder(ctx, leg); err != nil {
			slog.Warn("live: bracket leg not saved", "symbol", o.Symbol, "leg_id", legID, "err", err)
		}
	}
	slog.Info("live: order submitted", "run_id", runID, "symbol", o.Symbol, "side", o.Side,
		"qty", o.Quantity, "broker_id", sub.ID, "bracket", bracket != nil)
	return nil
}

func (le *Engine) markOpenCanceled(ctx context.Context, symbol string) {
	open, err := le.deps.Orders.OpenOrders(ctx, symbol)
	if err != nil {
		slog.Warn("live: open orders lookup failed", "symbol", symbol, "err", err)
		return
	}
	for _, o := range open {
		o.Status = domain.OrderCanceled
		if err := le.deps.Orders.UpdateOrder(ctx, o); err != nil {
			slog.Warn("live: order status not saved", "symbol", symbol, "id", o.ID, "err", err)
		}
	}
}

// HandleFill applies one broker order update. Entry fills record the entry
// price; exit fills (bracket legs) compute the realized return, update the arm
// and add the reward to the originating decision.
func (le *Engine) HandleFill(ctx context.Context, ev domain.FillEvent) error {
	lock := le.symbolLock(ev.Symbol)
	lock.Lock()
	defer lock.Unlock()

	rec, direct, err := le.matchOrder(ctx, ev)
	if err != nil {
		return fmt.Errorf("live.HandleFill: %s %s: %w", ev.Event, ev.OrderID, err)
	}

	if direct {
		if st, ok := statusFor(ev.Event); ok {
			rec.Status = st
		}
	}
	exit := rec.IsExitLeg() || ev.ParentID != ""
	if ev.IsFill() && !exit {
		rec.EntryPrice = ev.FillPrice
		slog.Info("live: entry filled", "symbol", ev.Symbol, "price", ev.FillPrice, "run_id", rec.RunID)
	}
	if direct || (ev.IsFill() && !exit) {
		if err := le.deps.Orders.UpdateOrder(ctx, rec); err != nil {
			return fmt.Errorf("live.HandleFill: update order: %w", err)
		}
	}
	if !ev.IsFill() || !exit {
		return nil
	}

	entry := rec
	if rec.IsExitLeg() {
		if entry, err = le.deps.Orders.FindOrderByBrokerID(ctx, rec.ParentID); err != nil {
			return fmt.Errorf("live.HandleFill: parent %s: %w", rec.ParentID, err)
		}
	}
	if entry.EntryPrice <= 0 {
		slog.Warn("live: exit fill without entry price, reward skipped", "symbol", ev.Symbol, "order_id", ev.OrderID)
		return nil
	}
	side := 1.0
	if entry.Side == domain.SideSell {
		side = -1
	}
	pnl := (ev.FillPrice - entry.EntryPrice) / entry.EntryPrice * side
	slog.Info("live: exit filled", "symbol", ev.Symbol, "entry", entry.EntryPrice, "exit", ev.FillPrice,
		"pnl_pct", fmt.Sprintf("%.2f%%", pnl*100), "run_id", entry.RunID)
	_, err = le.attributeReward(ctx, entry.RunID, pnl)
	return err
}

// matchOrder finds the tracked order for an update: by broker id, then by
// parent id for bracket children, then the most recent open order for the
// symbol. direct is false when only the parent matched.
func (le *Engine) matchOrder(ctx context.Context, ev domain.FillEvent) (domain.OrderRecord, bool, error) {
	rec, err := le.deps.Orders.FindOrderByBrokerID(ctx, ev.OrderID)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return domain.OrderRecord{}, false, err
	}
	if ev.ParentID != "" {
		rec, err = le.deps.Orders.FindOrderByBrokerID(ctx, ev.ParentID)
		if err == nil {
			return rec, false, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return domain.OrderRecord{}, false, err
		}
	}
	open, err := le.deps.Orders.OpenOrders(ctx, ev.Symbol)
	if err != nil {
		return domain.OrderRecord{}, false, err
	}
	if len(open) == 0 {
		return domain.OrderRecord{}, false, domain.ErrOrderNotFound
	}
	return open[0], true, nil
}

func statusFor(event string) (domain.OrderStatus, bool) {
	switch event {
	case "fill":
		return domain.OrderFilled, true
	case "canceled", "expired", "replaced", "done_for_day":
		return domain.OrderCanceled, true
	case "rejected":
		return domain.OrderFailed, true
	}
	return "", false
}

func opensExposure(side domain.Side, held float64) bool {
	if side == domain.SideBuy {
		return held >= 0
	}
	return held <= 0
}

func opposite(s domain.Side) domain.Side {
	if s == domain.SideBuy {
		return domain.SideSell
	}
	return domain.SideBuy
}
