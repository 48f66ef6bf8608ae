package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/paperpilot/config"
	"github.com/alejandrodnm/paperpilot/internal/adapters/notify"
	"github.com/alejandrodnm/paperpilot/internal/adapters/regime"
	"github.com/alejandrodnm/paperpilot/internal/adapters/storage"
	"github.com/alejandrodnm/paperpilot/internal/application/engine"
	"github.com/alejandrodnm/paperpilot/internal/application/optimizer"
	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/domain/strategy"
)

// flags agrupa las opciones de línea de comandos que afectan a más de un modo.
type flags struct {
	mode    string
	table   bool
	dryRun  bool
	reset   bool
	stress  bool
	runID   string
	reward  float64
	limit   int
	dataDir string
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	mode := flag.String("mode", "sim", "sim | walkforward | live | once | report | feedback")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full signal tables for each decision")
	dryRun := flag.Bool("dry-run", false, "live/once: compute and record decisions with the fixed arm, never submit")
	reset := flag.Bool("reset", false, "sim/walkforward: clear arm statistics before training")
	stress := flag.Bool("stress", false, "sim/walkforward: inject synthetic flash crashes")
	runID := flag.String("run-id", "", "feedback: decision run id")
	reward := flag.Float64("reward", 0, "feedback: reward to attribute")
	limit := flag.Int("limit", 20, "report: number of recent decisions")
	dataDir := flag.String("data", "", "sim/walkforward: CSV directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	f := flags{
		mode:    *mode,
		table:   *table,
		dryRun:  *dryRun,
		reset:   *reset,
		stress:  *stress,
		runID:   *runID,
		reward:  *reward,
		limit:   *limit,
		dataDir: *dataDir,
	}

	slog.Info("paperpilot starting",
		"config", *configPath,
		"mode", f.mode,
		"symbols", cfg.Strategy.Symbols,
		"granularity", cfg.Strategy.Granularity,
		"epsilon", *cfg.Strategy.Epsilon,
		"dry_run", f.dryRun,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(f.table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, f, store, notifier); err != nil {
		slog.Error("paperpilot exited with error", "mode", f.mode, "err", err)
		store.Close()
		os.Exit(1)
	}
	slog.Info("paperpilot stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console) error {
	switch f.mode {
	case "sim":
		return runSim(ctx, cfg, f, store, notifier)
	case "walkforward":
		return runWalkForward(ctx, cfg, f, store, notifier)
	case "live":
		return runLive(ctx, cfg, f, store, notifier)
	case "once":
		return runOnce(ctx, cfg, f, store, notifier)
	case "report":
		return runReport(ctx, cfg, f, store, notifier)
	case "feedback":
		return runFeedback(ctx, cfg, f, store, notifier)
	default:
		return fmt.Errorf("unknown mode %q", f.mode)
	}
}

// newOptimizer arma el bandit con los arms del config, la rejilla completa o
// los arms por defecto, en ese orden de prioridad.
func newOptimizer(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) (*optimizer.Optimizer, error) {
	arms := optimizer.DefaultArms()
	switch {
	case len(cfg.Strategy.Arms) > 0:
		arms = arms[:0]
		for _, a := range cfg.Strategy.Arms {
			arms = append(arms, domain.ParameterSet{
				FastWindow:      a.Fast,
				SlowWindow:      a.Slow,
				VolTarget:       a.VolTarget,
				StopLossPct:     a.StopLoss,
				TakeProfitPct:   a.TakeProfit,
				SignalThreshold: a.Threshold,
			}.WithDefaults())
		}
	case cfg.Strategy.Grid:
		arms = optimizer.GenerateGrid()
	}
	opt, err := optimizer.New(ctx, store, *cfg.Strategy.Epsilon, arms)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	slog.Info("optimizer ready", "arms", len(opt.Arms()), "epsilon", opt.Epsilon())
	return opt, nil
}

func pipelineConfig(cfg *config.Config) engine.PipelineConfig {
	return engine.PipelineConfig{
		Granularity:       domain.Granularity(cfg.Strategy.Granularity),
		VolWindow:         cfg.Strategy.VolWindow,
		MaxPositionWeight: cfg.Strategy.MaxPositionWeight,
		LeverageCap:       cfg.Strategy.LeverageCap,
		Policy:            strategy.PolicyFor(cfg.IsLongOnly()),
		Whitelist:         cfg.Strategy.Symbols,
	}
}

func oracleFor(cfg *config.Config) regime.Thresholds {
	return regime.Thresholds{
		ShieldVIX:        cfg.Regime.ShieldVIX,
		CrisisVIX:        cfg.Regime.CrisisVIX,
		BearishSentiment: cfg.Regime.BearishSentiment,
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
