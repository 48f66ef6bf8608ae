package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/config"
	"github.com/alejandrodnm/paperpilot/internal/adapters/csvfeed"
	"github.com/alejandrodnm/paperpilot/internal/adapters/metrics"
	"github.com/alejandrodnm/paperpilot/internal/adapters/notify"
	"github.com/alejandrodnm/paperpilot/internal/adapters/storage"
	"github.com/alejandrodnm/paperpilot/internal/application/engine/sim"
	"github.com/alejandrodnm/paperpilot/internal/application/optimizer"
	"github.com/alejandrodnm/paperpilot/internal/domain"
)

const vixSeriesSymbol = "VIX"

func runSim(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console) error {
	eng, opt, in, err := newSimEngine(ctx, cfg, f, store)
	if err != nil {
		return err
	}

	res, err := eng.Run(ctx, in, sim.Training)
	if err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	notifier.PrintSimSummary(summaryOf("simulation", res))
	return printLeaderboard(ctx, opt, notifier)
}

func runWalkForward(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console) error {
	eng, opt, in, err := newSimEngine(ctx, cfg, f, store)
	if err != nil {
		return err
	}

	wf := sim.WalkForwardConfig{
		ValidationSteps: cfg.Simulation.ValidationSteps,
		Refine:          cfg.Simulation.Refine,
	}
	if wf.ValidationSteps <= 0 {
		wf.ValidationSteps = len(in.Bars.Timeline()) / 5
	}
	res, err := eng.WalkForward(ctx, in, wf)
	if res != nil {
		if res.Train != nil {
			notifier.PrintSimSummary(summaryOf("training", res.Train))
		}
		if res.Refine != nil {
			notifier.PrintSimSummary(summaryOf("refinement", res.Refine))
		}
		if res.Validation != nil {
			notifier.PrintSimSummary(summaryOf("validation (out of sample)", res.Validation))
		}
	}
	if err != nil {
		return fmt.Errorf("walkforward: %w", err)
	}
	slog.Info("walkforward: done", "best_arm", res.Best.String(),
		"validation_return", fmt.Sprintf("%+.2f%%", res.Validation.TotalReturn*100))
	return printLeaderboard(ctx, opt, notifier)
}

// newSimEngine carga los CSV, resetea el bandit si se pidió y monta el engine.
func newSimEngine(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage) (*sim.Engine, *optimizer.Optimizer, sim.Input, error) {
	in, err := loadSimInput(ctx, cfg, f)
	if err != nil {
		return nil, nil, sim.Input{}, err
	}

	if f.reset {
		if err := store.ResetArmStats(ctx); err != nil {
			return nil, nil, sim.Input{}, fmt.Errorf("reset: %w", err)
		}
		slog.Info("sim: arm statistics cleared")
	}

	opt, err := newOptimizer(ctx, cfg, store)
	if err != nil {
		return nil, nil, sim.Input{}, err
	}

	eng := sim.New(opt, store, store, oracleFor(cfg), metrics.Nop{}, sim.Config{
		Pipeline:      pipelineConfig(cfg),
		InitialEquity: cfg.Simulation.InitialEquity,
		Steps:         cfg.Simulation.Steps,
		StressTest:    cfg.Simulation.StressTest || f.stress,
		HoldSentiment: cfg.Regime.HoldSentiment,
		DefaultVIX:    cfg.Regime.DefaultVIX,
		Sentiment:     cfg.Simulation.Sentiment,
		Session:       f.mode,
	})
	return eng, opt, in, nil
}

func loadSimInput(ctx context.Context, cfg *config.Config, f flags) (sim.Input, error) {
	dir := cfg.Simulation.CSVDir
	if f.dataDir != "" {
		dir = f.dataDir
	}
	feed := csvfeed.New(dir)
	bars, err := feed.GetBars(ctx, cfg.Strategy.Symbols, 0, domain.Granularity(cfg.Strategy.Granularity))
	if err != nil {
		return sim.Input{}, fmt.Errorf("load bars from %s: %w", dir, err)
	}
	in := sim.Input{Bars: bars}

	if cfg.Simulation.VIXCSV != "" {
		vix, err := csvfeed.LoadFile(cfg.Simulation.VIXCSV, vixSeriesSymbol)
		if err != nil {
			return sim.Input{}, fmt.Errorf("load vix: %w", err)
		}
		in.VIX = domain.NewBarSeries(vix)
	}
	slog.Info("sim: data loaded", "dir", dir, "symbols", len(bars.Symbols()),
		"timestamps", len(bars.Timeline()), "vix", in.VIX != nil)
	return in, nil
}

func summaryOf(label string, r *sim.Result) notify.SimSummary {
	return notify.SimSummary{
		Label:       label,
		From:        r.From,
		To:          r.To,
		Steps:       r.Steps,
		Trades:      r.Trades,
		Holds:       r.Holds,
		Aborted:     r.Aborted,
		StopHits:    r.StopHits,
		TakeProfits: r.TakeProfits,
		StartEquity: r.StartEquity,
		FinalEquity: r.FinalEquity,
		TotalReturn: r.TotalReturn,
		MaxDrawdown: r.MaxDrawdown,
		ArmsUsed:    r.ArmsUsed,
	}
}

func printLeaderboard(ctx context.Context, opt *optimizer.Optimizer, notifier *notify.Console) error {
	reports, err := opt.Leaderboard(ctx)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	rows := make([]notify.ArmRow, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, notify.ArmRow{Arm: r.Arm, Stats: r.Stats})
	}
	notifier.PrintLeaderboard(rows, opt.Epsilon())
	return nil
}
