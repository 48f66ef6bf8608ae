package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// ConsumeFills applies order updates until ctx is done or the stream closes.
// A stream error is returned so the caller can reconnect.
func (le *Engine) ConsumeFills(ctx context.Context, fills <-chan domain.FillEvent, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return fmt.Errorf("live.ConsumeFills: %w", err)
		case ev, ok := <-fills:
			if !ok {
				return nil
			}
			if err := le.HandleFill(ctx, ev); err != nil {
				if errors.Is(err, domain.ErrOrderNotFound) {
					slog.Debug("live: untracked order update", "order_id", ev.OrderID, "symbol", ev.Symbol, "event", ev.Event)
					continue
				}
				slog.Warn("live: order update failed", "order_id", ev.OrderID, "event", ev.Event, "err", err)
			}
		}
	}
}
