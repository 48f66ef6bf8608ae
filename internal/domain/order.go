package domain

import "time"

// Side is the direction of an order delta.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Position is a read-only holding snapshot from the broker.
type Position struct {
	Symbol   string
	Quantity float64
}

// OrderDelta is a derived buy/sell instruction that moves a holding toward its target.
type OrderDelta struct {
	Symbol   string `json:"symbol"`
	Side     Side   `json:"side"`
	Quantity int64  `json:"qty"`
}

// Bracket holds the exit legs attached to an entry order.
type Bracket struct {
	StopPrice  float64
	LimitPrice float64
}

// SubmittedOrder is what the broker returned for an accepted order.
type SubmittedOrder struct {
	ID     string
	LegIDs []string
}

// OrderStatus is the lifecycle of a tracked live order.
type OrderStatus string

const (
	OrderPlanned   OrderStatus = "planned"
	OrderSubmitted OrderStatus = "submitted"
	OrderFilled    OrderStatus = "fill"
	OrderCanceled  OrderStatus = "canceled"
	OrderFailed    OrderStatus = "failed"
)

// Open reports whether the order may still receive fills.
func (s OrderStatus) Open() bool {
	return s == OrderPlanned || s == OrderSubmitted
}

// OrderRecord is the persisted bookkeeping row for a live order. Bracket legs are
// stored with ParentID set to the entry order's broker id.
type OrderRecord struct {
	ID         int64
	RunID      string
	Symbol     string
	Side       Side
	Quantity   int64
	Status     OrderStatus
	BrokerID   string
	ParentID   string
	EntryPrice float64
	CreatedAt  time.Time
}

// IsExitLeg reports whether the row is a bracket child.
func (o OrderRecord) IsExitLeg() bool { return o.ParentID != "" }

// FillEvent is an asynchronous order update from the broker.
type FillEvent struct {
	OrderID   string
	ParentID  string
	Symbol    string
	Event     string // fill, partial_fill, canceled, rejected, ...
	FillPrice float64
	Timestamp time.Time
}

// IsFill reports a terminal fill.
func (e FillEvent) IsFill() bool { return e.Event == "fill" }
