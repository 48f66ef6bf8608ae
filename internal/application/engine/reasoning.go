package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// Reasoning builds the human-readable rationale stored with each decision.
// Symbols are listed in order so the text is reproducible.
func Reasoning(arm domain.ParameterSet, signals map[string]domain.Signal, regime domain.RegimeResult) string {
	syms := make([]string, 0, len(signals))
	for sym := range signals {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	parts := make([]string, 0, len(syms))
	for _, sym := range syms {
		switch sig := signals[sym]; {
		case sig > 0:
			parts = append(parts, fmt.Sprintf("LONG %s (Momentum Positive)", sym))
		case sig < 0:
			parts = append(parts, fmt.Sprintf("SHORT %s (Momentum Negative)", sym))
		default:
			parts = append(parts, fmt.Sprintf("FLAT %s (No Trend)", sym))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Strategy: TS_MOM | Params: %d/%d | VolTarget: %s | Regime: %s",
		arm.FastWindow, arm.SlowWindow, arm.VolTargetLabel(), regime.Effective())
	if regime.Err != nil {
		b.WriteString(" (unavailable)")
	}
	b.WriteString(" | Rational: ")
	b.WriteString(strings.Join(parts, "; "))
	return b.String()
}

// AppendOutcome adds the intrabar flags to a reasoning string.
func AppendOutcome(reasoning string, stop, takeProfit bool) string {
	if stop {
		reasoning += " | STOP LOSS TRIGGERED"
	}
	if takeProfit {
		reasoning += " | TAKE PROFIT TRIGGERED"
	}
	return reasoning
}

// AppendHold adds the gate reason to a reasoning string.
func AppendHold(reasoning string, g GateResult) string {
	if !g.Hold {
		return reasoning
	}
	return reasoning + " | HOLD: " + g.Reason
}

// Outcome labels a cycle from its gate and orders.
func Outcome(g GateResult, orders []domain.OrderDelta) string {
	switch {
	case g.Hold:
		return domain.OutcomeHold
	case len(orders) == 0:
		return domain.OutcomeNoTrade
	default:
		return domain.OutcomeTraded
	}
}
