package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/paperpilot/config"
	"github.com/alejandrodnm/paperpilot/internal/adapters/alpaca"
	"github.com/alejandrodnm/paperpilot/internal/adapters/metrics"
	"github.com/alejandrodnm/paperpilot/internal/adapters/notify"
	"github.com/alejandrodnm/paperpilot/internal/adapters/regime"
	"github.com/alejandrodnm/paperpilot/internal/adapters/storage"
	"github.com/alejandrodnm/paperpilot/internal/application/engine/live"
	"github.com/alejandrodnm/paperpilot/internal/application/trigger"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

const (
	liveAbortWindow = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

func runLive(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	client, le, err := newLiveEngine(ctx, cfg, f, store, notifier, rec)
	if err != nil {
		return err
	}

	if !cfg.IsPaper() && !f.dryRun {
		fmt.Printf("\nLIVE ACCOUNT: REAL MONEY WILL BE SPENT\n")
		fmt.Printf("   Symbols: %v | Max weight: %.0f%% | Leverage cap: %.0f%%\n",
			cfg.Strategy.Symbols, cfg.Strategy.MaxPositionWeight*100, cfg.Strategy.LeverageCap*100)
		fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

		abortTimer := time.NewTimer(liveAbortWindow)
		select {
		case <-abortTimer.C:
		case <-ctx.Done():
			slog.Info("live trading aborted by user")
			return nil
		}
	}

	deb := trigger.NewDebouncer(trigger.Config{
		MoveThreshold: cfg.Stream.MoveThreshold,
		Heartbeat:     cfg.Stream.Heartbeat,
		Cooldown:      cfg.Stream.Cooldown,
	})
	disp := trigger.NewDispatcher(func(ctx context.Context) error {
		_, err := le.RunOnce(ctx)
		return err
	}, rec)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tickLoop(ctx, client, cfg, deb, disp)
	})

	if !f.dryRun {
		g.Go(func() error {
			return fillLoop(ctx, client, le, cfg.Stream.Reconnect)
		})
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.Addr, reg)
		})
	}

	slog.Info("live trading started, press Ctrl+C to exit",
		"paper", cfg.IsPaper(), "dry_run", f.dryRun, "metrics", cfg.Metrics.Addr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runOnce ejecuta un único ciclo de decisión y sale.
func runOnce(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console) error {
	_, le, err := newLiveEngine(ctx, cfg, f, store, notifier, metrics.Nop{})
	if err != nil {
		return err
	}
	res, err := le.RunOnce(ctx)
	if err != nil {
		return err
	}
	slog.Info("once: cycle done",
		"run_id", res.RunID,
		"arm", res.Arm.Key(),
		"regime", res.Regime.Effective(),
		"outcome", res.Outcome,
		"submitted", res.Submitted,
		"failed", res.Failed,
	)
	return nil
}

func newLiveEngine(ctx context.Context, cfg *config.Config, f flags, store *storage.SQLiteStorage, notifier *notify.Console, rec ports.Metrics) (*alpaca.Client, *live.Engine, error) {
	if cfg.Broker.KeyID == "" || cfg.Broker.Secret == "" {
		return nil, nil, fmt.Errorf("broker credentials missing: set ALPACA_API_KEY and ALPACA_API_SECRET")
	}
	client := alpaca.NewClient(alpaca.Config{
		KeyID:     cfg.Broker.KeyID,
		Secret:    cfg.Broker.Secret,
		Paper:     cfg.IsPaper(),
		TradeBase: cfg.Broker.TradeBase,
		DataBase:  cfg.Broker.DataBase,
		Feed:      cfg.Broker.Feed,
	})

	opt, err := newOptimizer(ctx, cfg, store)
	if err != nil {
		return nil, nil, err
	}

	var sentiment ports.SentimentSource = regime.StaticSentiment(0)
	if cfg.Regime.News {
		sentiment = alpaca.NewNewsSentiment(client, cfg.Strategy.Symbols, cfg.Regime.NewsLimit)
	}

	le := live.New(live.Deps{
		Market:    client,
		Account:   client,
		Exec:      client,
		Regime:    regime.NewMarketInputs(client, sentiment, cfg.Regime.VIXSymbol, cfg.Regime.DefaultVIX),
		Oracle:    oracleFor(cfg),
		Learner:   opt,
		Decisions: store,
		Orders:    store,
		Equity:    store,
		Notifier:  notifier,
		Metrics:   rec,
	}, live.Config{
		Symbols:       cfg.Strategy.Symbols,
		Lookback:      cfg.Strategy.Lookback,
		Pipeline:      pipelineConfig(cfg),
		HoldSentiment: cfg.Regime.HoldSentiment,
		RegimeTimeout: cfg.Regime.Timeout,
		DryRun:        f.dryRun,
	})
	return client, le, nil
}

// tickLoop mantiene el stream de trades conectado y alimenta el trigger.
// Reconecta tras cada caída hasta que ctx termine.
func tickLoop(ctx context.Context, stream ports.TickStream, cfg *config.Config, deb *trigger.Debouncer, disp *trigger.Dispatcher) error {
	for {
		ticks, errs := stream.Ticks(ctx, cfg.Strategy.Symbols)
		if err := trigger.Run(ctx, ticks, deb, disp); err != nil {
			return err
		}
		if err, ok := <-errs; ok && err != nil {
			slog.Warn("live: tick stream dropped", "err", err, "retry_in", cfg.Stream.Reconnect)
		}
		if !sleepCtx(ctx, cfg.Stream.Reconnect) {
			return ctx.Err()
		}
	}
}

// fillLoop aplica las actualizaciones de órdenes y reconecta el stream trade_updates.
func fillLoop(ctx context.Context, stream ports.FillStream, le *live.Engine, reconnect time.Duration) error {
	for {
		fills, errs := stream.Fills(ctx)
		err := le.ConsumeFills(ctx, fills, errs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("live: fill stream dropped", "err", err, "retry_in", reconnect)
		if !sleepCtx(ctx, reconnect) {
			return ctx.Err()
		}
	}
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
