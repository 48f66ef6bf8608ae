package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// GetBars descarga las barras de los símbolos en [now-lookback, now], paginando.
// Para granularidad diaria lookback son días naturales; para intradía es un
// número de barras, que se traduce a un rango suficiente de días de mercado.
func (c *Client) GetBars(ctx context.Context, symbols []string, lookback int, g domain.Granularity) (*domain.BarSeries, error) {
	if len(symbols) == 0 {
		return domain.NewBarSeries(nil), nil
	}
	now := time.Now().UTC()
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("timeframe", timeframe(g))
	q.Set("start", now.Add(-lookbackWindow(g, lookback)).Format(time.RFC3339))
	q.Set("end", now.Format(time.RFC3339))
	q.Set("limit", "10000")
	q.Set("adjustment", "raw")
	q.Set("feed", c.cfg.Feed)

	var bars []domain.Bar
	for page := 0; ; page++ {
		var resp barsResponse
		if err := c.get(ctx, c.dataLimiter, c.cfg.DataBase+"/v2/stocks/bars?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("alpaca.GetBars: page %d: %w", page, err)
		}
		for sym, list := range resp.Bars {
			for _, b := range list {
				bars = append(bars, domain.Bar{
					Symbol:    sym,
					Timestamp: b.T,
					Open:      b.O,
					High:      b.H,
					Low:       b.L,
					Close:     b.C,
					Volume:    b.V,
				})
			}
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		q.Set("page_token", *resp.NextPageToken)
	}
	return domain.NewBarSeries(bars), nil
}

// GetLatestPrice devuelve el precio de la última operación del símbolo.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/v2/stocks/%s/trades/latest?feed=%s", c.cfg.DataBase, url.PathEscape(symbol), c.cfg.Feed)
	var resp latestTradeResponse
	if err := c.get(ctx, c.dataLimiter, u, &resp); err != nil {
		return 0, fmt.Errorf("alpaca.GetLatestPrice: %s: %w", symbol, err)
	}
	if resp.Trade.P <= 0 {
		return 0, fmt.Errorf("alpaca.GetLatestPrice: %s: %w", symbol, domain.ErrDataGap)
	}
	return resp.Trade.P, nil
}

func timeframe(g domain.Granularity) string {
	switch g {
	case domain.Minute:
		return "1Min"
	case domain.Minute5:
		return "5Min"
	case domain.Minute15:
		return "15Min"
	default:
		return "1Day"
	}
}

// lookbackWindow convierte lookback en un rango de calendario. Una sesión tiene
// 390 minutos y hay ~5 sesiones por cada 7 días naturales.
func lookbackWindow(g domain.Granularity, lookback int) time.Duration {
	const day = 24 * time.Hour
	var perSession int
	switch g {
	case domain.Minute:
		perSession = 390
	case domain.Minute5:
		perSession = 78
	case domain.Minute15:
		perSession = 26
	default:
		return time.Duration(lookback) * day
	}
	sessions := (lookback + perSession - 1) / perSession
	return time.Duration(sessions*7/5+3) * day
}
