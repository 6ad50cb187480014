// Package report drives one health run: it acquires the telemetry provider,
// snapshots and evaluates every device, and assembles the HealthReport.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kubeadapt/gpu-health/internal/check"
	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
	"github.com/kubeadapt/gpu-health/internal/observability"
	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/internal/telemetry"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Options tunes an Aggregator. The zero value is usable.
type Options struct {
	// Clock stamps the report. Defaults to the system clock.
	Clock healtherrors.Clock
	// Errors collects degraded-path errors. Optional.
	Errors *healtherrors.Collector
	// Metrics receives metric query failure counts. Optional.
	Metrics *observability.Metrics
	// Parallelism bounds how many devices are polled at once. Values
	// below 2 poll devices one at a time.
	Parallelism int
}

// Aggregator produces a HealthReport from a telemetry provider.
type Aggregator struct {
	provider    telemetry.Provider
	checks      *check.Registry
	builder     *snapshot.Builder
	errors      *healtherrors.Collector
	clock       healtherrors.Clock
	parallelism int
}

// NewAggregator creates an Aggregator that evaluates devices with checks.
// A nil checks registry means check.Default().
func NewAggregator(provider telemetry.Provider, checks *check.Registry, opts Options) *Aggregator {
	if checks == nil {
		checks = check.Default()
	}
	if opts.Clock == nil {
		opts.Clock = healtherrors.RealClock{}
	}
	return &Aggregator{
		provider:    provider,
		checks:      checks,
		builder:     snapshot.NewBuilder(opts.Errors, opts.Metrics),
		errors:      opts.Errors,
		clock:       opts.Clock,
		parallelism: opts.Parallelism,
	}
}

// deviceResult is the per-device outcome of a run.
type deviceResult struct {
	detail model.DeviceDetail
	health model.DeviceHealthResult
}

// Generate runs one health check over every device the provider reports.
//
// Provider initialization and device enumeration failures are fatal and are
// returned as *errors.HealthError. Every other failure degrades a single
// field and the report is still produced. The provider is shut down before
// Generate returns, whatever the outcome.
func (a *Aggregator) Generate(ctx context.Context) (*model.HealthReport, error) {
	release, err := telemetry.Acquire(ctx, a.provider)
	if err != nil {
		return nil, &healtherrors.HealthError{
			Code:      healtherrors.ErrProviderInit,
			Message:   fmt.Sprintf("report: telemetry provider unavailable: %v", err),
			Component: a.provider.Name(),
			Timestamp: a.clock.Now().UnixMilli(),
			Err:       err,
		}
	}
	defer release()

	count, err := a.provider.DeviceCount(ctx)
	if err == nil && count < 0 {
		err = fmt.Errorf("negative device count %d", count)
	}
	if err != nil {
		return nil, &healtherrors.HealthError{
			Code:      healtherrors.ErrDeviceDiscovery,
			Message:   fmt.Sprintf("report: device discovery failed: %v", err),
			Component: a.provider.Name(),
			Timestamp: a.clock.Now().UnixMilli(),
			Err:       err,
		}
	}

	r := &model.HealthReport{
		Timestamp:     a.clock.Now().UTC(),
		DriverVersion: a.driverVersion(),
		CUDAVersion:   a.cudaVersion(),
		GPUCount:      count,
	}

	results := a.pollDevices(ctx, count)

	r.GPUs = make([]model.DeviceDetail, 0, count)
	r.HealthChecks = make([]model.DeviceHealthResult, 0, count)
	for _, res := range results {
		r.GPUs = append(r.GPUs, res.detail)
		r.HealthChecks = append(r.HealthChecks, res.health)
	}
	r.OverallStatus = Rollup(r.HealthChecks)

	slog.Debug("report: generated",
		"provider", a.provider.Name(),
		"gpus", count,
		"status", r.OverallStatus,
	)
	return r, nil
}

// pollDevices returns one result per index in [0,count), in index order.
func (a *Aggregator) pollDevices(ctx context.Context, count int) []deviceResult {
	results := make([]deviceResult, count)

	if a.parallelism < 2 || count < 2 {
		for i := range count {
			results[i] = a.pollDevice(ctx, i)
		}
		return results
	}

	sem := make(chan struct{}, a.parallelism)
	var wg sync.WaitGroup
	for i := range count {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[index] = a.pollDevice(ctx, index)
		}(i)
	}
	wg.Wait()
	return results
}

func (a *Aggregator) pollDevice(ctx context.Context, index int) deviceResult {
	var s *snapshot.DeviceSnapshot
	dev, err := a.provider.DeviceByIndex(ctx, index)
	if err != nil {
		slog.Warn("report: device handle unavailable", "gpu", index, "error", err)
		s = a.builder.HandleUnavailable(index, err)
	} else {
		s = a.builder.Build(index, dev)
	}

	return deviceResult{
		detail: Detail(s),
		health: model.DeviceHealthResult{
			GPUIndex: index,
			Checks:   a.checks.Evaluate(s),
		},
	}
}

func (a *Aggregator) driverVersion() string {
	v, err := a.provider.DriverVersion()
	if err != nil || v == "" {
		if err == nil {
			err = fmt.Errorf("empty driver version")
		}
		a.degraded("driver_version", err)
		return model.Unknown
	}
	return v
}

func (a *Aggregator) cudaVersion() string {
	v, err := a.provider.CUDADriverVersion()
	if err == nil && v <= 0 {
		err = fmt.Errorf("invalid CUDA driver version %d", v)
	}
	if err != nil {
		a.degraded("cuda_version", err)
		return model.Unknown
	}
	return telemetry.FormatCUDAVersion(v)
}

func (a *Aggregator) degraded(component string, err error) {
	slog.Debug("report: value unavailable", "component", component, "error", err)
	if a.errors == nil {
		return
	}
	a.errors.Report(healtherrors.HealthError{
		Code:      healtherrors.ErrMetricUnavailable,
		Message:   fmt.Sprintf("%s unavailable: %v", component, err),
		Component: component,
		Err:       err,
	})
}
