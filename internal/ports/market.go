package ports

import (
	"context"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// MarketDataSource obtiene barras históricas y el último precio de un símbolo.
type MarketDataSource interface {
	// GetBars devuelve hasta lookback barras por símbolo, ascendentes por timestamp,
	// una por (símbolo, timestamp).
	GetBars(ctx context.Context, symbols []string, lookback int, g domain.Granularity) (*domain.BarSeries, error)

	// GetLatestPrice devuelve el último precio negociado.
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// TickStream publishes real-time trades for the given symbols.
// Both channels are closed when ctx is done or the connection drops.
type TickStream interface {
	Ticks(ctx context.Context, symbols []string) (<-chan domain.Tick, <-chan error)
}
