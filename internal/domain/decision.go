package domain

import "time"

// Signal is the directional view for one symbol: -1 short, 0 flat, +1 long.
type Signal int8

const (
	SignalShort Signal = -1
	SignalFlat  Signal = 0
	SignalLong  Signal = 1
)

func (s Signal) String() string {
	switch {
	case s > 0:
		return "LONG"
	case s < 0:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Mode identifies which surface produced a decision.
type Mode string

const (
	ModeSimulation Mode = "sim"
	ModeValidation Mode = "validate"
	ModeLive       Mode = "live"
	ModeDryRun     Mode = "dry_run"
)

// Decision outcome labels.
const (
	OutcomeTraded  = "traded"
	OutcomeNoTrade = "no_trade"
	OutcomeHold    = "hold"
	OutcomeAborted = "aborted"
)

// Decision is the audit record of one cycle. Reward stays nil until an outcome is known.
type Decision struct {
	ID        int64
	RunID     string
	Mode      Mode
	Timestamp time.Time
	Arm       ParameterSet
	Regime    RiskRegime
	Signals   map[string]Signal
	Targets   map[string]float64
	Orders    []OrderDelta
	Outcome   string
	Reasoning string
	Reward    *float64
}

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	Timestamp   time.Time
	Equity      float64
	DrawdownPct float64
}

// MaxDrawdown returns the largest peak-to-trough fall, as a fraction of the peak.
func MaxDrawdown(curve []EquityPoint) float64 {
	peak, maxDD := 0.0, 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
