package snapshot

import (
	"errors"
	"fmt"
	"log/slog"

	"k8s.io/utils/ptr"

	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
	"github.com/kubeadapt/gpu-health/internal/observability"
	"github.com/kubeadapt/gpu-health/internal/telemetry"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Metric names used in error components and the query failure counter.
const (
	MetricIdentity    = "identity"
	MetricMemory      = "memory"
	MetricTemperature = "temperature"
	MetricUtilization = "utilization"
	MetricPowerDraw   = "power_draw"
	MetricPowerLimit  = "power_limit"
	MetricPCIe        = "pcie"
	MetricECC         = "ecc_errors"
	MetricProcesses   = "processes"
	MetricHandle      = "handle"
)

// Builder turns telemetry reads into DeviceSnapshots. Every read is isolated:
// a failed read marks that field unavailable and is recorded, nothing more.
// Both dependencies are optional.
type Builder struct {
	errorCollector *healtherrors.Collector
	metrics        *observability.Metrics
}

// NewBuilder creates a Builder that records degraded reads in errCollector
// and metrics.
func NewBuilder(errCollector *healtherrors.Collector, metrics *observability.Metrics) *Builder {
	return &Builder{errorCollector: errCollector, metrics: metrics}
}

// Build queries dev in a fixed order (identity, memory, temperature,
// utilization, power, PCIe, ECC, processes) and returns the snapshot.
func (b *Builder) Build(index int, dev telemetry.Device) *DeviceSnapshot {
	s := &DeviceSnapshot{Index: index}

	s.Identity = b.identity(index, dev)

	if mem, err := dev.MemoryInfo(); err != nil {
		b.degraded(index, MetricMemory, err)
	} else if mem.Used+mem.Free != mem.Total {
		b.degraded(index, MetricMemory, fmt.Errorf("inconsistent memory info: used %d + free %d != total %d",
			mem.Used, mem.Free, mem.Total))
	} else {
		s.Memory = &Memory{TotalBytes: mem.Total, UsedBytes: mem.Used, FreeBytes: mem.Free}
	}

	if t, err := dev.Temperature(); err != nil {
		b.degraded(index, MetricTemperature, err)
	} else {
		s.TemperatureCelsius = ptr.To(t)
	}

	if u, err := dev.Utilization(); err != nil {
		b.degraded(index, MetricUtilization, err)
	} else if u.GPU > 100 || u.Memory > 100 {
		b.degraded(index, MetricUtilization, fmt.Errorf("utilization out of range: gpu %d%%, memory %d%%", u.GPU, u.Memory))
	} else {
		s.Utilization = &Utilization{GPUPercent: u.GPU, MemoryPercent: u.Memory}
	}

	if w, err := dev.PowerDraw(); err != nil {
		b.degraded(index, MetricPowerDraw, err)
	} else if w < 0 {
		b.degraded(index, MetricPowerDraw, fmt.Errorf("negative power draw %.2fW", w))
	} else {
		s.PowerDrawWatts = ptr.To(w)
	}

	if w, err := dev.PowerLimit(); err != nil {
		b.degraded(index, MetricPowerLimit, err)
	} else if w < 0 {
		b.degraded(index, MetricPowerLimit, fmt.Errorf("negative power limit %.2fW", w))
	} else {
		s.PowerLimitWatts = ptr.To(w)
	}

	if link, err := dev.PCIeLink(); err != nil {
		b.degraded(index, MetricPCIe, err)
	} else {
		s.PCIe = &PCIeLink{
			CurrentGeneration: link.CurrentGeneration,
			CurrentWidth:      link.CurrentWidth,
			MaxGeneration:     link.MaxGeneration,
			MaxWidth:          link.MaxWidth,
		}
	}

	s.ECC = b.ecc(index, dev)

	// A failed process query reports 0 for compatibility with existing
	// report consumers; ProcessCountKnown keeps the distinction.
	if n, err := dev.ComputeProcessCount(); err != nil {
		b.degraded(index, MetricProcesses, err)
	} else {
		s.ActiveProcessCount = n
		s.ProcessCountKnown = true
	}

	return s
}

// HandleUnavailable records a failed handle lookup and returns the
// all-unavailable snapshot for index.
func (b *Builder) HandleUnavailable(index int, err error) *DeviceSnapshot {
	b.degraded(index, MetricHandle, err)
	return Unavailable(index)
}

func (b *Builder) identity(index int, dev telemetry.Device) Identity {
	id := Identity{Name: model.Unknown, UUID: model.Unknown}

	if name, err := dev.Name(); err != nil {
		b.degraded(index, MetricIdentity, fmt.Errorf("name: %w", err))
	} else {
		id.Name = name
	}

	if uuid, err := dev.UUID(); err != nil {
		b.degraded(index, MetricIdentity, fmt.Errorf("uuid: %w", err))
	} else {
		id.UUID = uuid
	}

	return id
}

// ecc reads both counters; the pair is only available when both reads succeed.
func (b *Builder) ecc(index int, dev telemetry.Device) *ECCErrors {
	corrected, err := dev.ECCErrors(telemetry.ECCCorrected)
	if err != nil {
		b.degraded(index, MetricECC, fmt.Errorf("corrected: %w", err))
		return nil
	}
	uncorrected, err := dev.ECCErrors(telemetry.ECCUncorrected)
	if err != nil {
		b.degraded(index, MetricECC, fmt.Errorf("uncorrected: %w", err))
		return nil
	}
	return &ECCErrors{Corrected: corrected, Uncorrected: uncorrected}
}

func (b *Builder) degraded(index int, metric string, err error) {
	component := fmt.Sprintf("gpu%d.%s", index, metric)

	if errors.Is(err, telemetry.ErrNotSupported) {
		slog.Debug("snapshot: metric not supported", "gpu", index, "metric", metric)
	} else {
		slog.Debug("snapshot: metric query failed", "gpu", index, "metric", metric, "error", err)
	}

	if b.metrics != nil {
		b.metrics.MetricQueryFailures.WithLabelValues(metric).Inc()
	}
	if b.errorCollector != nil {
		b.errorCollector.Report(healtherrors.HealthError{
			Code:      healtherrors.ErrMetricUnavailable,
			Message:   fmt.Sprintf("%s unavailable: %v", component, err),
			Component: component,
			Err:       err,
		})
	}
}
