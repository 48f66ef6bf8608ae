package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

func TestDiffOrders_NoOrderWhenNothingToDo(t *testing.T) {
	orders, skipped := DiffOrders(nil, map[string]float64{"A": 0}, map[string]float64{"A": 10}, nil)
	assert.Empty(t, orders)
	assert.Empty(t, skipped)

	orders, _ = DiffOrders([]domain.Position{{Symbol: "A", Quantity: 10}}, map[string]float64{"A": 100}, map[string]float64{"A": 10}, nil)
	assert.Empty(t, orders)
}

func TestDiffOrders_FlipLongToShort(t *testing.T) {
	orders, _ := DiffOrders(
		[]domain.Position{{Symbol: "A", Quantity: 10}},
		map[string]float64{"A": -50},
		map[string]float64{"A": 10},
		nil,
	)
	assert.Equal(t, []domain.OrderDelta{{Symbol: "A", Side: domain.SideSell, Quantity: 15}}, orders)
}

func TestDiffOrders_FloorsFractionalShares(t *testing.T) {
	orders, _ := DiffOrders(nil, map[string]float64{"A": 999}, map[string]float64{"A": 100}, nil)
	assert.Equal(t, []domain.OrderDelta{{Symbol: "A", Side: domain.SideBuy, Quantity: 9}}, orders)
}

func TestDiffOrders_ClosesPositionWithoutTarget(t *testing.T) {
	orders, _ := DiffOrders([]domain.Position{{Symbol: "OLD", Quantity: 7}}, nil, map[string]float64{"OLD": 5}, nil)
	assert.Equal(t, []domain.OrderDelta{{Symbol: "OLD", Side: domain.SideSell, Quantity: 7}}, orders)
}

func TestDiffOrders_SkipsMissingPriceAndKeepsOthers(t *testing.T) {
	orders, skipped := DiffOrders(nil,
		map[string]float64{"A": 100, "B": 100},
		map[string]float64{"B": 20},
		nil,
	)
	assert.Equal(t, []string{"A"}, skipped)
	assert.Equal(t, []domain.OrderDelta{{Symbol: "B", Side: domain.SideBuy, Quantity: 5}}, orders)
}

func TestDiffOrders_WhitelistAndOrdering(t *testing.T) {
	orders, _ := DiffOrders(
		[]domain.Position{{Symbol: "ZZZ", Quantity: 1}, {Symbol: "IGNORED", Quantity: 3}},
		map[string]float64{"MMM": 100, "AAA": 100},
		map[string]float64{"ZZZ": 10, "MMM": 10, "AAA": 10, "IGNORED": 10},
		[]string{"AAA", "MMM", "ZZZ"},
	)
	syms := make([]string, len(orders))
	for i, o := range orders {
		syms[i] = o.Symbol
	}
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, syms)
}

func TestBracketPrices(t *testing.T) {
	buy := BracketPrices(domain.SideBuy, 123.456, 0.01, 0.02)
	assert.Equal(t, domain.Bracket{StopPrice: 122.22, LimitPrice: 125.93}, buy)

	sell := BracketPrices(domain.SideSell, 100, 0.01, 0.02)
	assert.Equal(t, domain.Bracket{StopPrice: 101, LimitPrice: 98}, sell)
}
