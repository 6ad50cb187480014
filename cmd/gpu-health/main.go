package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/kubeadapt/gpu-health/internal/agent"
	"github.com/kubeadapt/gpu-health/internal/config"
	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
	"github.com/kubeadapt/gpu-health/internal/observability"
	"github.com/kubeadapt/gpu-health/internal/report"
	"github.com/kubeadapt/gpu-health/internal/sink"
	"github.com/kubeadapt/gpu-health/internal/transport"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load config from env, then let flags override it.
	cfg := config.Load()
	cfg.Version = version

	fs := pflag.NewFlagSet("gpu-health", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return sink.ExitHealthy
		}
		fmt.Fprintln(os.Stderr, err)
		return sink.ExitFatal
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return sink.ExitFatal
	}

	// 2. Logging goes to stderr; stdout carries only the report and summary.
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// 3. Create context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	slog.Info("gpu-health starting",
		"version", cfg.Version,
		"provider", cfg.Provider,
		"output", cfg.Output,
		"format", cfg.Format,
		"node", cfg.NodeName,
	)

	// 4. Create shared infrastructure.
	metrics := observability.NewMetrics()
	errCollector := healtherrors.NewCollector(healtherrors.RealClock{})

	provider, err := agent.NewProvider(&cfg)
	if err != nil {
		slog.Error("failed to create telemetry provider", "error", err)
		return sink.ExitFatal
	}
	checks, err := agent.NewChecks(&cfg)
	if err != nil {
		slog.Error("failed to build check registry", "error", err)
		return sink.ExitFatal
	}

	aggregator := report.NewAggregator(provider, checks, report.Options{
		Errors:      errCollector,
		Metrics:     metrics,
		Parallelism: cfg.Parallelism,
	})

	// 5. Optional push transport.
	var transportClient *transport.Client
	if cfg.PushURL != "" {
		transportClient = transport.NewClient(&cfg, metrics, errCollector)
	}

	// 6. Run once.
	ag := agent.NewAgent(&cfg, aggregator, transportClient, errCollector, metrics, os.Stdout)
	return ag.Run(ctx)
}
