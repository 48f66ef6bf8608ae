package domain

import "fmt"

// RiskRegime is the coarse market-risk classification.
type RiskRegime string

const (
	RegimeSafe         RiskRegime = "SAFE"
	RegimeShieldActive RiskRegime = "SHIELD_ACTIVE"
	RegimeCrisis       RiskRegime = "CRISIS"
)

// Multiplier scales the vol target: 1.0 safe, 0.5 shield, 0.1 crisis.
func (r RiskRegime) Multiplier() float64 {
	switch r {
	case RegimeShieldActive:
		return 0.5
	case RegimeCrisis:
		return 0.1
	default:
		return 1.0
	}
}

// ParseRiskRegime accepts the three canonical names.
func ParseRiskRegime(s string) (RiskRegime, error) {
	switch r := RiskRegime(s); r {
	case RegimeSafe, RegimeShieldActive, RegimeCrisis:
		return r, nil
	}
	return "", fmt.Errorf("unknown risk regime %q", s)
}

// RegimeInputs are the raw values the oracle classifies.
type RegimeInputs struct {
	VIXProxy  float64
	Sentiment float64 // -1 bearish .. +1 bullish, 0 when unknown
}

// RegimeResult is the outcome of asking the oracle. Err is set (wrapping
// ErrRegimeUnavailable) when the oracle failed or timed out.
type RegimeResult struct {
	Regime RiskRegime
	Inputs RegimeInputs
	Err    error
}

// Effective is the regime the cycle acts on. An unavailable oracle falls back to SAFE:
// the vol target is left unscaled and the sizer's clamps still apply.
func (r RegimeResult) Effective() RiskRegime {
	if r.Err != nil || r.Regime == "" {
		return RegimeSafe
	}
	return r.Regime
}
