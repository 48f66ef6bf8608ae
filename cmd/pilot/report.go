package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/config"
	"github.com/alejandrodnm/paperpilot/internal/adapters/metrics"
	"github.com/alejandrodnm/paperpilot/internal/adapters/notify"
	"github.com/alejandrodnm/paperpilot/internal/adapters/storage"
	"github.com/alejandrodnm/paperpilot/internal/application/engine/live"
)

func runReport(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console) error {
	opt, err := newOptimizer(ctx, cfg, store)
	if err != nil {
		return err
	}
	if err := printLeaderboard(ctx, opt, notifier); err != nil {
		return err
	}

	decisions, err := store.RecentDecisions(ctx, f.limit)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	notifier.PrintDecisions(decisions)
	return nil
}

// runFeedback atribuye una recompensa manual a una decisión pasada.
// No necesita broker: sólo toca el log de decisiones y el optimizer.
func runFeedback(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, _ *notify.Console) error {
	if f.runID == "" {
		return fmt.Errorf("feedback: -run-id is required")
	}
	opt, err := newOptimizer(ctx, cfg, store)
	if err != nil {
		return err
	}
	le := live.New(live.Deps{
		Learner:   opt,
		Decisions: store,
		Orders:    store,
		Equity:    store,
		Metrics:   metrics.Nop{},
	}, live.Config{Symbols: cfg.Strategy.Symbols})

	stats, err := le.RecordFeedback(ctx, f.runID, f.reward)
	if err != nil {
		return err
	}
	slog.Info("feedback recorded",
		"run_id", f.runID,
		"reward", f.reward,
		"arm", stats.ArmKey,
		"trials", stats.Trials,
		"avg_reward", fmt.Sprintf("%.6f", stats.AvgReward()),
	)
	return nil
}
