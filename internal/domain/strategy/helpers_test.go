package strategy

import (
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func barsFor(sym string, closes []float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{
			Symbol: sym, Timestamp: t0.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	return out
}
