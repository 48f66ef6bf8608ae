package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/internal/application/optimizer"
	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// WalkForwardConfig splits the timeline into a training slice and a recent
// out-of-sample validation slice.
type WalkForwardConfig struct {
	ValidationSteps int
	// Refine adds the neighbours of the trained winner and trains once more
	// over the same slice before validating.
	Refine bool
}

// WalkForwardResult holds every phase of a walk-forward run.
type WalkForwardResult struct {
	Train      *Result
	Refine     *Result
	Validation *Result
	Best       domain.ParameterSet
}

// WalkForward trains on the older slice (choose + learn) and validates on the
// newest one (best, no learning) over the same optimizer.
func (e *Engine) WalkForward(ctx context.Context, in Input, wf WalkForwardConfig) (*WalkForwardResult, error) {
	timeline := in.Bars.Timeline()
	last := len(timeline) - 1
	start := 0
	if e.cfg.Steps > 0 && last-e.cfg.Steps > 0 {
		start = last - e.cfg.Steps
	}
	split := last - wf.ValidationSteps
	if wf.ValidationSteps <= 0 || split <= start {
		return nil, fmt.Errorf("sim.WalkForward: %d validation steps leave no training data in %d steps", wf.ValidationSteps, last-start)
	}

	out := &WalkForwardResult{}
	var err error
	if out.Train, err = e.runRange(ctx, in, timeline, start, split, e.cfg.InitialEquity, Training); err != nil {
		return out, fmt.Errorf("sim.WalkForward: train: %w", err)
	}

	if wf.Refine {
		best, err := e.learner.Best(ctx)
		if err != nil {
			return out, fmt.Errorf("sim.WalkForward: best after train: %w", err)
		}
		added := e.learner.AddArms(optimizer.Mutate(best))
		slog.Info("sim: refining around winner", "arm", best.Key(), "new_arms", added)
		refine := Training
		refine.Mode = domain.ModeSimulation + "_refine"
		if out.Refine, err = e.runRange(ctx, in, timeline, start, split, e.cfg.InitialEquity, refine); err != nil {
			return out, fmt.Errorf("sim.WalkForward: refine: %w", err)
		}
	}

	if out.Best, err = e.learner.Best(ctx); err != nil {
		return out, fmt.Errorf("sim.WalkForward: best: %w", err)
	}
	slog.Info("sim: locked winner for validation", "arm", out.Best.String())

	if out.Validation, err = e.runRange(ctx, in, timeline, split, last, e.cfg.InitialEquity, Validation); err != nil {
		return out, fmt.Errorf("sim.WalkForward: validate: %w", err)
	}
	return out, nil
}
