package strategy

import (
	"fmt"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// Policy decides which raw signals are allowed to reach the sizer.
type Policy string

const (
	// LongOnly collapses short signals to flat.
	LongOnly Policy = "long_only"
	// LongShort passes signals through unchanged.
	LongShort Policy = "long_short"
)

// PolicyFor maps the long_only config flag to a Policy.
func PolicyFor(longOnly bool) Policy {
	if longOnly {
		return LongOnly
	}
	return LongShort
}

// Apply returns a new map with the policy applied.
func (p Policy) Apply(signals map[string]domain.Signal) map[string]domain.Signal {
	out := make(map[string]domain.Signal, len(signals))
	for sym, s := range signals {
		if p == LongOnly && s < 0 {
			s = domain.SignalFlat
		}
		out[sym] = s
	}
	return out
}

func (p Policy) Validate() error {
	switch p {
	case LongOnly, LongShort:
		return nil
	}
	return fmt.Errorf("unknown signal policy %q", string(p))
}
