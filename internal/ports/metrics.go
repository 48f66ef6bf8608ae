package ports

import "time"

// Metrics records engine activity. Implementations must be safe for concurrent use.
type Metrics interface {
	CycleCompleted(mode, outcome string, took time.Duration)
	OrderSubmitted(symbol string, ok bool)
	RewardRecorded(armKey string, reward float64)
	TriggerFired(symbol string)
	DispatchDropped()
	SetEquity(equity float64)
}
