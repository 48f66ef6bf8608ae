package ports

import (
	"context"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// AccountSource exposes the budget and holdings of the trading account.
type AccountSource interface {
	// GetBudget returns the capital this strategy may allocate.
	GetBudget(ctx context.Context) (float64, error)

	// GetPositions returns a snapshot of current holdings.
	GetPositions(ctx context.Context) ([]domain.Position, error)
}

// ExecutionGateway submits and cancels real orders.
type ExecutionGateway interface {
	// Submit places an order. With a bracket, the broker attaches the stop and
	// take-profit legs and reports their ids in SubmittedOrder.LegIDs.
	Submit(ctx context.Context, order domain.OrderDelta, bracket *domain.Bracket) (domain.SubmittedOrder, error)

	// CancelOpenOrders cancels every open order for symbol.
	CancelOpenOrders(ctx context.Context, symbol string) error
}

// FillStream publishes asynchronous order updates.
type FillStream interface {
	Fills(ctx context.Context) (<-chan domain.FillEvent, <-chan error)
}
