package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// GetBudget devuelve el equity de la cuenta, que es el presupuesto del sizer.
func (c *Client) GetBudget(ctx context.Context) (float64, error) {
	var acct account
	if err := c.get(ctx, c.tradeLimiter, c.cfg.TradeBase+"/v2/account", &acct); err != nil {
		return 0, fmt.Errorf("alpaca.GetBudget: %w", err)
	}
	return acct.Equity.InexactFloat64(), nil
}

// GetPositions devuelve las posiciones abiertas. Los cortos llegan con qty negativa.
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var raw []position
	if err := c.get(ctx, c.tradeLimiter, c.cfg.TradeBase+"/v2/positions", &raw); err != nil {
		return nil, fmt.Errorf("alpaca.GetPositions: %w", err)
	}
	out := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		qty := p.Qty
		if p.Side == "short" && qty.IsPositive() {
			qty = qty.Neg()
		}
		out = append(out, domain.Position{Symbol: p.Symbol, Quantity: qty.InexactFloat64()})
	}
	return out, nil
}

// Submit envía una orden a mercado, DAY. Con bracket la orden es de clase
// "bracket" y la respuesta trae los ids de las dos patas.
func (c *Client) Submit(ctx context.Context, o domain.OrderDelta, bracket *domain.Bracket) (domain.SubmittedOrder, error) {
	req := orderRequest{
		Symbol:        o.Symbol,
		Qty:           strconv.FormatInt(o.Quantity, 10),
		Side:          string(o.Side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.NewString(),
	}
	if bracket != nil {
		req.OrderClass = "bracket"
		req.TakeProfit = &takeProfit{LimitPrice: strconv.FormatFloat(bracket.LimitPrice, 'f', 2, 64)}
		req.StopLoss = &stopLoss{StopPrice: strconv.FormatFloat(bracket.StopPrice, 'f', 2, 64)}
	}

	var resp order
	if err := c.post(ctx, c.tradeLimiter, c.cfg.TradeBase+"/v2/orders", req, &resp); err != nil {
		return domain.SubmittedOrder{}, fmt.Errorf("alpaca.Submit: %s %s %d: %w", o.Side, o.Symbol, o.Quantity, err)
	}
	sub := domain.SubmittedOrder{ID: resp.ID}
	for _, leg := range resp.Legs {
		sub.LegIDs = append(sub.LegIDs, leg.ID)
	}
	return sub, nil
}

// CancelOpenOrders cancela todas las órdenes abiertas del símbolo.
// Sigue con el resto si una cancelación falla y devuelve el primer error.
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) error {
	q := url.Values{}
	q.Set("status", "open")
	q.Set("symbols", symbol)
	q.Set("nested", "false")
	var open []order
	if err := c.get(ctx, c.tradeLimiter, c.cfg.TradeBase+"/v2/orders?"+q.Encode(), &open); err != nil {
		return fmt.Errorf("alpaca.CancelOpenOrders: list %s: %w", symbol, err)
	}
	var first error
	for _, o := range open {
		if err := c.delete(ctx, c.tradeLimiter, c.cfg.TradeBase+"/v2/orders/"+url.PathEscape(o.ID)); err != nil && first == nil {
			first = fmt.Errorf("alpaca.CancelOpenOrders: %s %s: %w", symbol, o.ID, err)
		}
	}
	return first
}
