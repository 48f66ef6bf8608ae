package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// RecordFeedback attaches an operator-supplied reward to a past decision and
// updates the arm it used.
func (le *Engine) RecordFeedback(ctx context.Context, runID string, reward float64) (domain.ArmStatistics, error) {
	stats, err := le.attributeReward(ctx, runID, reward)
	if err != nil {
		return domain.ArmStatistics{}, fmt.Errorf("live.RecordFeedback: %w", err)
	}
	return stats, nil
}

// attributeReward updates the decision's arm and accumulates the reward on the
// decision. An arm the optimizer cannot accept is logged and skipped; other
// arms are untouched.
func (le *Engine) attributeReward(ctx context.Context, runID string, reward float64) (domain.ArmStatistics, error) {
	d, err := le.deps.Decisions.GetDecision(ctx, runID)
	if err != nil {
		return domain.ArmStatistics{}, fmt.Errorf("decision %s: %w", runID, err)
	}
	stats, err := le.deps.Learner.Update(ctx, d.Arm, reward)
	if err != nil {
		if errors.Is(err, domain.ErrOptimizerInconsistency) {
			slog.Warn("live: reward not attributed", "run_id", runID, "err", err)
			return domain.ArmStatistics{}, nil
		}
		return domain.ArmStatistics{}, fmt.Errorf("update arm %s: %w", d.Arm.Key(), err)
	}
	if err := le.deps.Decisions.AddDecisionReward(ctx, runID, reward); err != nil {
		return stats, fmt.Errorf("decision %s reward: %w", runID, err)
	}
	le.deps.Metrics.RewardRecorded(d.Arm.Key(), reward)
	slog.Info("live: reward attributed", "run_id", runID, "arm", d.Arm.Key(), "reward", reward,
		"trials", stats.Trials, "avg", stats.AvgReward())
	return stats, nil
}
