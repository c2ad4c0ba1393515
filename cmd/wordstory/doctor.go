package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wordstory/internal/adapter/store"
	"wordstory/internal/adapter/transport"
	"wordstory/internal/adapter/wire"
	"wordstory/internal/infra/config"
	"wordstory/internal/infra/logger"
	"wordstory/internal/infra/metrics"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func doctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on your setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), opts.configPath)
		},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(ctx context.Context, out io.Writer, cfgPath string) error {
	// Some checks work without a loaded config.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Log output", Fn: checkLogOutput},
		{Name: "Game server", Fn: checkServer(ctx)},
		{Name: "Stats store", Fn: checkStore},
		{Name: "Metrics address", Fn: checkMetricsAddr},
	}

	fmt.Fprintln(out, "wordstory doctor")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(out, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(out, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 50))
	fmt.Fprintf(out, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that reports where the config came from.
// A missing file is fine: defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Fix %s or remove it to use defaults", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLogOutput verifies the log destination can be opened.
func checkLogOutput(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	_, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Point logger.output at a writable file, or use stderr",
		}
	}
	closeLog()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("logging to %s", cfg.Logger.Output)}
}

// checkServer opens a websocket to the game server and closes it again.
func checkServer(ctx context.Context) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil {
			return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
		}
		u, err := url.Parse(cfg.Server.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("invalid server url %q", cfg.Server.URL),
				Fix:     "Set server.url to a ws:// or wss:// address",
			}
		}

		timeout := cfg.Server.DialTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		drop := transport.SinkFunc(func(context.Context, wire.Frame) {})
		conn := transport.Connect(ctx, cfg.Server.URL, drop, transportOptions(cfg, logger.Discard(), metrics.Nop{})...)
		defer conn.Close()

		if err := conn.WaitReady(ctx); err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("cannot reach %s: %v", cfg.Server.URL, err),
				Fix:     "Check that the server is running and server.url is correct",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s reachable (latency: %dms, join timeout: %s)",
				cfg.Server.URL, time.Since(start).Milliseconds(), cfg.Client.JoinTimeout()),
		}
	}
}

// checkStore opens the stats database and counts stored games.
func checkStore(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if !cfg.Store.Enabled {
		return CheckResult{Status: StatusPass, Message: "stats store disabled"}
	}
	st, err := store.NewSQLiteStatsStore(cfg.Store.Path)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     fmt.Sprintf("Check permissions of %s", filepath.Dir(cfg.Store.Path)),
		}
	}
	defer st.Close()

	records, err := st.List(context.Background(), 0)
	if err != nil {
		return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("store opened but unreadable: %v", err)}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%d game(s) recorded)", cfg.Store.Path, len(records)),
	}
}

// checkMetricsAddr verifies the metrics listen address is free.
func checkMetricsAddr(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if !cfg.Metrics.Enabled {
		return CheckResult{Status: StatusPass, Message: "metrics disabled"}
	}
	ln, err := net.Listen("tcp", cfg.Metrics.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("cannot listen on %s: %v", cfg.Metrics.Addr, err),
			Fix:     "Pick a free address for metrics.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s available", cfg.Metrics.Addr)}
}
