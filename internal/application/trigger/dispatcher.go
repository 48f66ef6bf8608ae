package trigger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

// CycleFunc runs one decision cycle.
type CycleFunc func(ctx context.Context) error

// Dispatcher runs at most one cycle at a time. A request that arrives while a
// cycle is in flight is dropped.
type Dispatcher struct {
	run     CycleFunc
	metrics ports.Metrics

	busy atomic.Bool
	wg   sync.WaitGroup
}

func NewDispatcher(run CycleFunc, metrics ports.Metrics) *Dispatcher {
	return &Dispatcher{run: run, metrics: metrics}
}

// Dispatch starts a cycle in its own goroutine and returns immediately.
// It reports false when the request was dropped.
func (d *Dispatcher) Dispatch(ctx context.Context) bool {
	if !d.busy.CompareAndSwap(false, true) {
		d.metrics.DispatchDropped()
		slog.Debug("trigger: cycle in flight, request dropped")
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.busy.Store(false)
		if err := d.run(ctx); err != nil {
			slog.Error("trigger: cycle failed", "err", err)
		}
	}()
	return true
}

// Wait blocks until the in-flight cycle, if any, returns.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Run consumes ticks until ctx is done or the channel closes. It is the single
// consumer of the stream: debounce bookkeeping happens inline and cycles are
// handed to the dispatcher without blocking.
func Run(ctx context.Context, ticks <-chan domain.Tick, deb *Debouncer, disp *Dispatcher) error {
	defer disp.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			if deb.Observe(tick) {
				disp.metrics.TriggerFired(tick.Symbol)
				slog.Info("trigger: fire", "symbol", tick.Symbol, "price", tick.Price)
				disp.Dispatch(ctx)
			}
		}
	}
}
