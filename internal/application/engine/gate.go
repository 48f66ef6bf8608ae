package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

// DefaultHoldSentiment: por debajo de este sentimiento un régimen SHIELD_ACTIVE no opera.
const DefaultHoldSentiment = -0.3

// GateResult says whether a cycle may place orders.
type GateResult struct {
	Hold   bool
	Reason string
}

// Gate blocks every order in CRISIS, and in SHIELD_ACTIVE when sentiment is
// below holdSentiment.
func Gate(r domain.RegimeResult, holdSentiment float64) GateResult {
	switch r.Effective() {
	case domain.RegimeCrisis:
		return GateResult{Hold: true, Reason: "CRISIS mode: trades blocked"}
	case domain.RegimeShieldActive:
		if r.Err == nil && r.Inputs.Sentiment < holdSentiment {
			return GateResult{Hold: true, Reason: fmt.Sprintf("risk-off: sentiment %.2f too bearish", r.Inputs.Sentiment)}
		}
	}
	return GateResult{}
}

// ResolveRegime collects the regime inputs under timeout and classifies them.
// Any failure is returned inside the result; Effective() then falls back to SAFE.
func ResolveRegime(ctx context.Context, src ports.RegimeInputSource, oracle ports.RegimeOracle, timeout time.Duration) domain.RegimeResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	in, err := src.RegimeInputs(ctx)
	if err != nil {
		slog.Warn("engine: regime unavailable, defaulting to SAFE", "err", err)
		return domain.RegimeResult{Err: fmt.Errorf("%w: %v", domain.ErrRegimeUnavailable, err)}
	}
	return domain.RegimeResult{Regime: oracle.Classify(in), Inputs: in}
}
