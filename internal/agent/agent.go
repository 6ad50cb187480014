// Package agent wires one health run together: generate the report, export
// metrics, persist and print the report, then optionally push it.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kubeadapt/gpu-health/internal/config"
	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
	"github.com/kubeadapt/gpu-health/internal/observability"
	"github.com/kubeadapt/gpu-health/internal/report"
	"github.com/kubeadapt/gpu-health/internal/sink"
	"github.com/kubeadapt/gpu-health/internal/transport"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Agent is the orchestrator for a single health run.
type Agent struct {
	config         *config.Config
	aggregator     *report.Aggregator
	transport      *transport.Client
	errorCollector *healtherrors.Collector
	metrics        *observability.Metrics
	stdout         io.Writer
}

// NewAgent creates an Agent. transport may be nil, which disables the push.
func NewAgent(
	cfg *config.Config,
	aggregator *report.Aggregator,
	transport *transport.Client,
	errCollector *healtherrors.Collector,
	metrics *observability.Metrics,
	stdout io.Writer,
) *Agent {
	return &Agent{
		config:         cfg,
		aggregator:     aggregator,
		transport:      transport,
		errorCollector: errCollector,
		metrics:        metrics,
		stdout:         stdout,
	}
}

// Run executes one health run and returns the process exit code.
func (a *Agent) Run(ctx context.Context) int {
	start := time.Now()
	r, err := a.run(ctx)
	a.metrics.RunDuration.Set(time.Since(start).Seconds())

	if a.config.MetricsFile != "" {
		if werr := a.metrics.WriteTextfile(a.config.MetricsFile); werr != nil {
			slog.Warn("agent: metrics textfile not written", "path", a.config.MetricsFile, "error", werr)
			a.errorCollector.Report(healtherrors.HealthError{
				Code:      healtherrors.ErrMetricsWrite,
				Message:   werr.Error(),
				Component: "observability",
				Err:       werr,
			})
		}
	}

	a.logDegraded()

	code := sink.ExitCode(r, err)
	if err != nil {
		slog.Error("agent: health run failed",
			"code", healtherrors.CodeOf(err),
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return code
	}

	slog.Info("agent: health run complete",
		"status", r.OverallStatus,
		"gpus", r.GPUCount,
		"exit_code", code,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return code
}

func (a *Agent) run(ctx context.Context) (*model.HealthReport, error) {
	r, err := a.aggregator.Generate(ctx)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordReport(r)

	format, err := sink.ParseFormat(a.config.Format)
	if err != nil {
		return nil, err
	}

	data, err := sink.Encode(r, format)
	if err != nil {
		return nil, &healtherrors.HealthError{
			Code:      healtherrors.ErrReportWrite,
			Message:   fmt.Sprintf("agent: encode report: %v", err),
			Component: "sink",
			Err:       err,
		}
	}

	n, err := sink.Write(a.config.Output, data)
	if err != nil {
		return nil, err
	}
	a.metrics.ReportSizeBytes.WithLabelValues(encodingLabel(format, a.config.Output)).Set(float64(n))
	slog.Debug("agent: report written", "path", a.config.Output, "bytes", n)

	if a.config.Verbose {
		if err := sink.Echo(a.stdout, data, format); err != nil {
			slog.Warn("agent: echo failed", "error", err)
		}
	}
	if err := sink.Summary(a.stdout, r, a.config.Output); err != nil {
		slog.Warn("agent: summary not printed", "error", err)
	}

	// The report is already on disk; a failed push only degrades the run.
	if a.transport != nil {
		if resp, err := a.transport.Push(ctx, r); err != nil {
			slog.Warn("agent: report push failed", "url", a.config.PushURL, "error", err)
		} else {
			slog.Info("agent: report pushed", "report_id", resp.ReportID, "accepted", resp.Accepted)
		}
	}

	return r, nil
}

// logDegraded logs every non-fatal error the run absorbed.
func (a *Agent) logDegraded() {
	errs := a.errorCollector.Errors()
	if len(errs) == 0 {
		return
	}
	for _, e := range errs {
		slog.Debug("agent: degraded", "code", e.Code, "component", e.Component, "message", e.Message)
	}
	slog.Warn("agent: run completed with degraded data",
		"errors", len(errs),
		"codes", a.errorCollector.Codes(),
	)
}

// encodingLabel names the on-disk encoding, e.g. "json" or "cbor_zstd".
func encodingLabel(format sink.Format, path string) string {
	if strings.HasSuffix(path, sink.CompressedSuffix) {
		return string(format) + "_zstd"
	}
	return string(format)
}
