// Package engine holds the decision pipeline shared by the simulated and live engines.
package engine

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// ArmLearner es la interfaz mínima que los engines necesitan del optimizer.
// Desacopla sim y live de *optimizer.Optimizer concreto.
type ArmLearner interface {
	Choose(ctx context.Context) (domain.ParameterSet, error)
	Best(ctx context.Context) (domain.ParameterSet, error)
	Update(ctx context.Context, arm domain.ParameterSet, reward float64) (domain.ArmStatistics, error)
	AddArms(arms []domain.ParameterSet) int
}

// Selection controls how a cycle picks its arm.
type Selection string

const (
	// SelectExplore uses epsilon-greedy Choose (training and live).
	SelectExplore Selection = "explore"
	// SelectBest always exploits (validation).
	SelectBest Selection = "best"
	// SelectFixed bypasses the optimizer (dry run).
	SelectFixed Selection = "fixed"
)

// SelectArm resolves the arm for one cycle.
func SelectArm(ctx context.Context, learner ArmLearner, sel Selection, fixed domain.ParameterSet) (domain.ParameterSet, error) {
	var (
		arm domain.ParameterSet
		err error
	)
	switch sel {
	case SelectFixed:
		arm = fixed
	case SelectBest:
		arm, err = learner.Best(ctx)
	default:
		arm, err = learner.Choose(ctx)
	}
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("engine.SelectArm: %w", err)
	}
	return arm.WithDefaults(), nil
}
