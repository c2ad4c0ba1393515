package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"wordstory/internal/adapter/store"
	"wordstory/internal/adapter/transport"
	"wordstory/internal/adapter/tui/play"
	"wordstory/internal/infra/config"
	"wordstory/internal/infra/logger"
	"wordstory/internal/infra/metrics"
	"wordstory/internal/infra/middleware"
	"wordstory/internal/infra/tracer"
	"wordstory/internal/usecase/dispatch"
	"wordstory/internal/usecase/game"
)

const (
	shutdownTimeout = 3 * time.Second
	scrapesPerMin   = 120
	scrapeBurst     = 10
)

func playCmd(opts *rootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the public lobby and play",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), opts.configPath, name)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name shown to other players")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runPlay(ctx context.Context, cfgPath, name string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	rec, stopMetrics := startMetrics(ctx, cfg.Metrics, log)
	defer stopMetrics()

	runnerOpts := []game.RunnerOption{game.WithRunnerLogger(log)}
	if cfg.Store.Enabled {
		st, err := store.NewSQLiteStatsStore(cfg.Store.Path)
		if err != nil {
			log.Warn("stats store unavailable", "path", cfg.Store.Path, "error", err)
		} else {
			defer st.Close()
			runnerOpts = append(runnerOpts, game.WithStatsSaver(st))
		}
	}

	registry := dispatch.New(dispatch.WithLogger(log), dispatch.WithMetrics(rec))
	conn := transport.Connect(ctx, cfg.Server.URL, registry, transportOptions(cfg, log, rec)...)
	defer conn.Close()

	client := game.NewClient(conn, registry,
		game.WithLogger(log),
		game.WithMetrics(rec),
		game.WithJoinWatchdog(cfg.Client.JoinPollInterval, cfg.Client.JoinMaxMisses),
		game.WithErrorHandler(func(err error) {
			log.Warn("dropped server event", "error", err)
		}),
	)

	screen := play.NewScreen(log)
	runnerOpts = append(runnerOpts, game.WithObserver(screen.Observe))
	runner := game.NewRunner(client, runnerOpts...)

	log.Info("starting game", "server", cfg.Server.URL, "display_name", name)
	err = screen.Run(ctx, play.Deps{
		Player:      runner,
		WaitReady:   conn.WaitReady,
		DisplayName: name,
		Logger:      log,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// transportOptions maps config onto transport options.
func transportOptions(cfg *config.Config, log *slog.Logger, rec metrics.Recorder) []transport.Option {
	opts := []transport.Option{
		transport.WithLogger(log),
		transport.WithMetrics(rec),
		transport.WithDialTimeout(cfg.Server.DialTimeout),
		transport.WithReadLimit(cfg.Server.ReadLimit),
	}
	if cfg.Server.Token != "" {
		opts = append(opts, transport.WithHeader("Authorization", "Bearer "+cfg.Server.Token))
	}
	if cfg.Client.SendRate > 0 {
		opts = append(opts, transport.WithSendLimit(rate.Limit(cfg.Client.SendRate), cfg.Client.SendBurst))
	}
	return opts
}

// startMetrics serves /metrics when enabled. The returned func stops the
// server.
func startMetrics(ctx context.Context, cfg config.MetricsConfig, log *slog.Logger) (metrics.Recorder, func()) {
	if !cfg.Enabled {
		return metrics.Nop{}, func() {}
	}

	prom := metrics.NewPrometheus(metrics.WithNamespace(cfg.Namespace))
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: middleware.Chain(mux,
			middleware.Headers,
			middleware.RateLimit(ctx, scrapesPerMin, scrapeBurst),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", cfg.Addr, "error", err)
		}
	}()
	log.Info("metrics server started", "addr", fmt.Sprintf("http://%s/metrics", cfg.Addr))

	return prom, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
