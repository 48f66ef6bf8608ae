package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataGap marks a symbol with no usable price or volatility this cycle.
	ErrDataGap = errors.New("data gap")
	// ErrSubmission marks a single order the broker rejected.
	ErrSubmission = errors.New("order submission failed")
	// ErrRegimeUnavailable marks a regime oracle that timed out or failed.
	ErrRegimeUnavailable = errors.New("risk regime unavailable")
	// ErrOptimizerInconsistency marks an arm key that cannot be parsed back into an arm.
	ErrOptimizerInconsistency = errors.New("optimizer inconsistency")
	// ErrNoArms is returned when the optimizer has no candidates to pick from.
	ErrNoArms = errors.New("no candidate arms")
	// ErrOrderNotFound is returned when a fill cannot be matched to a tracked order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDecisionNotFound is returned for an unknown run id.
	ErrDecisionNotFound = errors.New("decision not found")
)

// Cycle stages, in execution order.
const (
	StageSelectArm = "SELECT_ARM"
	StageSignal    = "SIGNAL"
	StageSize      = "SIZE"
	StageDiff      = "DIFF"
	StageGate      = "GATE"
	StageExecute   = "EXECUTE_OR_SIMULATE"
	StageRecord    = "RECORD"
)

// CycleAbortError is an unexpected failure that ended a single cycle.
type CycleAbortError struct {
	RunID string
	Stage string
	Err   error
}

func (e *CycleAbortError) Error() string {
	return fmt.Sprintf("cycle %s aborted at %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *CycleAbortError) Unwrap() error { return e.Err }
