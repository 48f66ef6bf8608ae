package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

const pingInterval = 20 * time.Second

// Mensajes del stream de market data: cada frame es un array de objetos con "T".
type dataMessage struct {
	T    string    `json:"T"`
	S    string    `json:"S"`
	P    float64   `json:"p"`
	Time time.Time `json:"t"`
	Msg  string    `json:"msg"`
	Code int       `json:"code"`
}

// Mensajes del stream de trading.
type tradeStreamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type tradeUpdate struct {
	Event     string           `json:"event"`
	Price     *decimal.Decimal `json:"price"`
	Timestamp time.Time        `json:"timestamp"`
	Order     order            `json:"order"`
}

// Ticks se conecta al stream de trades y emite un Tick por operación de los
// símbolos dados. El canal de errores recibe como mucho un error; después
// ambos canales se cierran y el caller decide si reconecta.
func (c *Client) Ticks(ctx context.Context, symbols []string) (<-chan domain.Tick, <-chan error) {
	ticks := make(chan domain.Tick, 1024)
	errs := make(chan error, 1)

	go func() {
		defer close(ticks)
		defer close(errs)

		conn, err := c.dial(ctx, c.cfg.DataStream,
			map[string]any{"action": "auth", "key": c.cfg.KeyID, "secret": c.cfg.Secret},
			map[string]any{"action": "subscribe", "trades": symbols},
		)
		if err != nil {
			errs <- fmt.Errorf("alpaca.Ticks: %w", err)
			return
		}
		defer conn.Close()
		slog.Info("alpaca: trade stream connected", "symbols", len(symbols))

		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("alpaca.Ticks: read: %w", err)
				}
				return
			}
			var msgs []dataMessage
			if err := json.Unmarshal(b, &msgs); err != nil {
				slog.Debug("alpaca: unparsed data frame", "err", err)
				continue
			}
			for _, m := range msgs {
				switch m.T {
				case "t":
					select {
					case ticks <- domain.Tick{Symbol: m.S, Price: m.P, Timestamp: m.Time}:
					default:
						// backpressure: el debouncer sólo necesita el último precio
					}
				case "error":
					errs <- fmt.Errorf("alpaca.Ticks: stream error %d: %s", m.Code, m.Msg)
					return
				}
			}
		}
	}()
	return ticks, errs
}

// Fills se conecta al stream trade_updates y emite cada actualización de orden.
func (c *Client) Fills(ctx context.Context) (<-chan domain.FillEvent, <-chan error) {
	fills := make(chan domain.FillEvent, 256)
	errs := make(chan error, 1)

	go func() {
		defer close(fills)
		defer close(errs)

		conn, err := c.dial(ctx, c.cfg.TradeStream,
			map[string]any{"action": "auth", "key": c.cfg.KeyID, "secret": c.cfg.Secret},
			map[string]any{"action": "listen", "data": map[string]any{"streams": []string{"trade_updates"}}},
		)
		if err != nil {
			errs <- fmt.Errorf("alpaca.Fills: %w", err)
			return
		}
		defer conn.Close()
		slog.Info("alpaca: trade_updates stream connected")

		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("alpaca.Fills: read: %w", err)
				}
				return
			}
			ev, ok, err := parseTradeStream(b)
			if err != nil {
				errs <- fmt.Errorf("alpaca.Fills: %w", err)
				return
			}
			if !ok {
				continue
			}
			select {
			case fills <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return fills, errs
}

// parseTradeStream devuelve ok=false para frames que no son trade_updates.
// Una autorización rechazada es un error.
func parseTradeStream(b []byte) (domain.FillEvent, bool, error) {
	var msg tradeStreamMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return domain.FillEvent{}, false, nil
	}
	switch msg.Stream {
	case "authorization":
		var auth struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(msg.Data, &auth); err == nil && auth.Status != "authorized" {
			return domain.FillEvent{}, false, fmt.Errorf("authorization %s", auth.Status)
		}
		return domain.FillEvent{}, false, nil
	case "trade_updates":
	default:
		return domain.FillEvent{}, false, nil
	}

	var u tradeUpdate
	if err := json.Unmarshal(msg.Data, &u); err != nil {
		return domain.FillEvent{}, false, fmt.Errorf("decode trade update: %w", err)
	}
	ev := domain.FillEvent{
		OrderID:   u.Order.ID,
		ParentID:  u.Order.ParentID,
		Symbol:    u.Order.Symbol,
		Event:     u.Event,
		Timestamp: u.Timestamp,
	}
	switch {
	case u.Price != nil:
		ev.FillPrice = u.Price.InexactFloat64()
	case u.Order.FilledAvgPrice != nil:
		ev.FillPrice = u.Order.FilledAvgPrice.InexactFloat64()
	}
	return ev, true, nil
}

// dial abre la conexión, envía los mensajes iniciales y arranca el ping loop.
// La conexión se cierra cuando ctx termina, lo que desbloquea ReadMessage.
func (c *Client) dial(ctx context.Context, endpoint string, hello ...any) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	for _, m := range hello {
		if err := conn.WriteJSON(m); err != nil {
			conn.Close()
			return nil, fmt.Errorf("write %s: %w", endpoint, err)
		}
	}

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()
	return conn, nil
}
