package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fallback exit/threshold values for arms rebuilt from a stored key, which only
// carries fast/slow/vol_target.
const (
	DefaultStopLossPct     = 0.02
	DefaultTakeProfitPct   = 0.05
	DefaultSignalThreshold = 0.0005
)

// ParameterSet is one bandit arm: a full configuration of the momentum strategy.
type ParameterSet struct {
	FastWindow      int     `json:"fast"`
	SlowWindow      int     `json:"slow"`
	VolTarget       float64 `json:"vol_target"`
	StopLossPct     float64 `json:"sl_pct"`
	TakeProfitPct   float64 `json:"tp_pct"`
	SignalThreshold float64 `json:"threshold"`
}

// Key is the canonical "{fast}_{slow}_{vol_target}" identity of the arm.
// Stop-loss, take-profit and threshold are not part of it: arms that differ only
// in those fields share a statistics bucket.
func (p ParameterSet) Key() string {
	return fmt.Sprintf("%d_%d_%s", p.FastWindow, p.SlowWindow, formatVolTarget(p.VolTarget))
}

// Validate checks the window invariant and that ratios are usable.
func (p ParameterSet) Validate() error {
	if p.FastWindow <= 0 {
		return fmt.Errorf("fast window must be positive, got %d", p.FastWindow)
	}
	if p.FastWindow >= p.SlowWindow {
		return fmt.Errorf("fast window %d must be below slow window %d", p.FastWindow, p.SlowWindow)
	}
	if p.VolTarget <= 0 {
		return fmt.Errorf("vol target must be positive, got %v", p.VolTarget)
	}
	if p.StopLossPct < 0 || p.TakeProfitPct < 0 || p.SignalThreshold < 0 {
		return fmt.Errorf("stop/take-profit/threshold must not be negative")
	}
	return nil
}

// WithDefaults fills unset exit and threshold fields.
func (p ParameterSet) WithDefaults() ParameterSet {
	if p.StopLossPct == 0 {
		p.StopLossPct = DefaultStopLossPct
	}
	if p.TakeProfitPct == 0 {
		p.TakeProfitPct = DefaultTakeProfitPct
	}
	if p.SignalThreshold == 0 {
		p.SignalThreshold = DefaultSignalThreshold
	}
	return p
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("%d/%d vol=%s sl=%.4f tp=%.4f th=%.5f",
		p.FastWindow, p.SlowWindow, formatVolTarget(p.VolTarget),
		p.StopLossPct, p.TakeProfitPct, p.SignalThreshold)
}

// VolTargetLabel formats the vol target the way it appears in the key.
func (p ParameterSet) VolTargetLabel() string { return formatVolTarget(p.VolTarget) }

// ParseArmKey rebuilds an arm from its canonical key. Fields that the key does
// not carry take the package defaults.
func ParseArmKey(key string) (ParameterSet, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return ParameterSet{}, fmt.Errorf("%w: key %q: want 3 fields, got %d", ErrOptimizerInconsistency, key, len(parts))
	}
	fast, err := strconv.Atoi(parts[0])
	if err != nil {
		return ParameterSet{}, fmt.Errorf("%w: key %q: fast: %v", ErrOptimizerInconsistency, key, err)
	}
	slow, err := strconv.Atoi(parts[1])
	if err != nil {
		return ParameterSet{}, fmt.Errorf("%w: key %q: slow: %v", ErrOptimizerInconsistency, key, err)
	}
	vol, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return ParameterSet{}, fmt.Errorf("%w: key %q: vol_target: %v", ErrOptimizerInconsistency, key, err)
	}
	p := ParameterSet{FastWindow: fast, SlowWindow: slow, VolTarget: vol}.WithDefaults()
	if err := p.Validate(); err != nil {
		return ParameterSet{}, fmt.Errorf("%w: key %q: %v", ErrOptimizerInconsistency, key, err)
	}
	return p, nil
}

// formatVolTarget renders floats the way existing keys were written: shortest
// representation, always with a decimal point ("0.1", "0.15", "1.0").
func formatVolTarget(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ArmStatistics is the learning state for one arm key.
type ArmStatistics struct {
	ArmKey      string
	Trials      int
	TotalReward float64
	UpdatedAt   time.Time
}

// AvgReward is TotalReward/Trials, or 0 for an untried arm.
func (s ArmStatistics) AvgReward() float64 {
	if s.Trials <= 0 {
		return 0
	}
	return s.TotalReward / float64(s.Trials)
}

// Record returns the statistics after observing one more reward.
func (s ArmStatistics) Record(reward float64, at time.Time) ArmStatistics {
	s.Trials++
	s.TotalReward += reward
	s.UpdatedAt = at
	return s
}
