package ports

import (
	"context"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// Notifier presenta al usuario el resultado de cada ciclo.
type Notifier interface {
	NotifyDecision(ctx context.Context, d domain.Decision) error
}
