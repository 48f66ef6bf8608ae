package strategy

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// DiffOrders calcula las órdenes que llevan las posiciones actuales al objetivo.
// Recorre la unión de símbolos con posición u objetivo, restringida a whitelist si no es vacía.
// Un símbolo sin precio conocido se salta con un warning y se devuelve en skipped.
// El resultado está ordenado por símbolo.
func DiffOrders(positions []domain.Position, targets map[string]float64, prices map[string]float64, whitelist []string) (orders []domain.OrderDelta, skipped []string) {
	current := make(map[string]int64, len(positions))
	universe := make(map[string]bool, len(positions)+len(targets))
	for _, p := range positions {
		current[p.Symbol] += int64(p.Quantity)
		universe[p.Symbol] = true
	}
	for sym := range targets {
		universe[sym] = true
	}
	if len(whitelist) > 0 {
		allowed := make(map[string]bool, len(whitelist))
		for _, s := range whitelist {
			allowed[s] = true
		}
		for sym := range universe {
			if !allowed[sym] {
				delete(universe, sym)
			}
		}
	}

	syms := make([]string, 0, len(universe))
	for sym := range universe {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	for _, sym := range syms {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			slog.Warn("strategy: skipping symbol", "symbol", sym, "err", fmt.Errorf("%w: no price for %s", domain.ErrDataGap, sym))
			skipped = append(skipped, sym)
			continue
		}
		delta := TargetQuantity(targets[sym], price) - current[sym]
		if delta == 0 {
			continue
		}
		side := domain.SideBuy
		if delta < 0 {
			side = domain.SideSell
			delta = -delta
		}
		orders = append(orders, domain.OrderDelta{Symbol: sym, Side: side, Quantity: delta})
	}
	return orders, skipped
}

// TargetQuantity es floor(exposure/price) en acciones enteras.
func TargetQuantity(exposure, price float64) int64 {
	if price <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(exposure).Div(decimal.NewFromFloat(price)).Floor()
	return q.IntPart()
}

// BracketPrices calcula stop y take-profit de una entrada, redondeados a céntimos.
// Para una venta los niveles son el espejo de una compra.
func BracketPrices(side domain.Side, price, stopLossPct, takeProfitPct float64) domain.Bracket {
	px := decimal.NewFromFloat(price)
	sl := decimal.NewFromFloat(stopLossPct)
	tp := decimal.NewFromFloat(takeProfitPct)
	one := decimal.NewFromInt(1)

	var stop, limit decimal.Decimal
	if side == domain.SideSell {
		stop = px.Mul(one.Add(sl))
		limit = px.Mul(one.Sub(tp))
	} else {
		stop = px.Mul(one.Sub(sl))
		limit = px.Mul(one.Add(tp))
	}
	return domain.Bracket{
		StopPrice:  stop.Round(2).InexactFloat64(),
		LimitPrice: limit.Round(2).InexactFloat64(),
	}
}
