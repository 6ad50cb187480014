package snapshot

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
	"github.com/kubeadapt/gpu-health/internal/observability"
	"github.com/kubeadapt/gpu-health/internal/telemetry"
	"github.com/kubeadapt/gpu-health/internal/telemetry/telemetrytest"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

func newTestBuilder() (*Builder, *healtherrors.Collector, *observability.Metrics) {
	ec := healtherrors.NewCollector(healtherrors.RealClock{})
	m := observability.NewMetrics()
	return NewBuilder(ec, m), ec, m
}

func failureCount(t *testing.T, m *observability.Metrics, metric string) float64 {
	t.Helper()
	pb := &dto.Metric{}
	require.NoError(t, m.MetricQueryFailures.WithLabelValues(metric).(prometheus.Metric).Write(pb))
	return pb.GetCounter().GetValue()
}

func TestBuild_AllMetricsAvailable(t *testing.T) {
	b, ec, _ := newTestBuilder()
	dev := telemetrytest.NewDevice("NVIDIA A100-SXM4-80GB", "GPU-abc123")
	dev.Corrected = 3
	dev.Uncorrected = 0

	s := b.Build(2, dev)

	assert.Equal(t, 2, s.Index)
	assert.Equal(t, Identity{Name: "NVIDIA A100-SXM4-80GB", UUID: "GPU-abc123"}, s.Identity)
	require.NotNil(t, s.Memory)
	assert.Equal(t, uint64(80<<30), s.Memory.TotalBytes)
	assert.Equal(t, s.Memory.TotalBytes, s.Memory.UsedBytes+s.Memory.FreeBytes)
	require.NotNil(t, s.TemperatureCelsius)
	assert.Equal(t, 55, *s.TemperatureCelsius)
	require.NotNil(t, s.Utilization)
	assert.Equal(t, uint32(40), s.Utilization.GPUPercent)
	require.NotNil(t, s.PowerDrawWatts)
	assert.InDelta(t, 250.0, *s.PowerDrawWatts, 0.001)
	require.NotNil(t, s.PowerLimitWatts)
	assert.InDelta(t, 400.0, *s.PowerLimitWatts, 0.001)
	require.NotNil(t, s.PCIe)
	assert.Equal(t, 16, s.PCIe.MaxWidth)
	require.NotNil(t, s.ECC)
	assert.Equal(t, ECCErrors{Corrected: 3, Uncorrected: 0}, *s.ECC)
	assert.Equal(t, 2, s.ActiveProcessCount)
	assert.True(t, s.ProcessCountKnown)

	assert.Equal(t, 0, ec.Len())
}

func TestBuild_QueryOrder(t *testing.T) {
	b, _, _ := newTestBuilder()
	dev := telemetrytest.NewDevice("gpu", "GPU-1")

	b.Build(0, dev)

	assert.Equal(t, []string{
		telemetrytest.MetricName,
		telemetrytest.MetricUUID,
		telemetrytest.MetricMemory,
		telemetrytest.MetricTemperature,
		telemetrytest.MetricUtilization,
		telemetrytest.MetricPowerDraw,
		telemetrytest.MetricPowerLimit,
		telemetrytest.MetricPCIe,
		telemetrytest.MetricECC,
		telemetrytest.MetricECC,
		telemetrytest.MetricProcesses,
	}, dev.Calls())
}

func TestBuild_EachFailureIsIsolated(t *testing.T) {
	cases := []struct {
		metric string
		check  func(t *testing.T, s *DeviceSnapshot)
	}{
		{telemetrytest.MetricMemory, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.Memory) }},
		{telemetrytest.MetricTemperature, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.TemperatureCelsius) }},
		{telemetrytest.MetricUtilization, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.Utilization) }},
		{telemetrytest.MetricPowerDraw, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.PowerDrawWatts) }},
		{telemetrytest.MetricPowerLimit, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.PowerLimitWatts) }},
		{telemetrytest.MetricPCIe, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.PCIe) }},
		{telemetrytest.MetricECC, func(t *testing.T, s *DeviceSnapshot) { assert.Nil(t, s.ECC) }},
	}

	for _, tc := range cases {
		t.Run(tc.metric, func(t *testing.T) {
			b, ec, _ := newTestBuilder()
			dev := telemetrytest.NewDevice("gpu", "GPU-1").Fail(tc.metric, nil)

			s := b.Build(0, dev)
			tc.check(t, s)

			// Every other metric still populated.
			populated := 0
			for _, ok := range []bool{
				s.Memory != nil, s.TemperatureCelsius != nil, s.Utilization != nil,
				s.PowerDrawWatts != nil, s.PowerLimitWatts != nil, s.PCIe != nil, s.ECC != nil,
			} {
				if ok {
					populated++
				}
			}
			assert.Equal(t, 6, populated)
			assert.True(t, s.ProcessCountKnown)
			assert.Equal(t, 1, ec.Len())
		})
	}
}

func TestBuild_ProcessFailureDefaultsToZero(t *testing.T) {
	b, ec, m := newTestBuilder()
	dev := telemetrytest.NewDevice("gpu", "GPU-1").Fail(telemetrytest.MetricProcesses, nil)

	s := b.Build(0, dev)

	assert.Equal(t, 0, s.ActiveProcessCount)
	assert.False(t, s.ProcessCountKnown)
	assert.Equal(t, 1, ec.Len())
	assert.Equal(t, "gpu0.processes", ec.Errors()[0].Component)
	assert.Equal(t, 1.0, failureCount(t, m, MetricProcesses))
}

func TestBuild_ConfirmedZeroProcesses(t *testing.T) {
	b, _, _ := newTestBuilder()
	dev := telemetrytest.NewDevice("gpu", "GPU-1")
	dev.Processes = 0

	s := b.Build(0, dev)

	assert.Equal(t, 0, s.ActiveProcessCount)
	assert.True(t, s.ProcessCountKnown)
}

func TestBuild_InconsistentMemoryIsUnavailable(t *testing.T) {
	b, ec, _ := newTestBuilder()
	dev := telemetrytest.NewDevice("gpu", "GPU-1")
	dev.Memory = telemetry.MemoryInfo{Total: 100, Used: 30, Free: 60}

	s := b.Build(0, dev)

	assert.Nil(t, s.Memory)
	require.Equal(t, 1, ec.Len())
	assert.Contains(t, ec.Errors()[0].Message, "inconsistent memory info")
}

func TestBuild_UtilizationOutOfRange(t *testing.T) {
	b, _, _ := newTestBuilder()
	dev := telemetrytest.NewDevice("gpu", "GPU-1")
	dev.Util = telemetry.Utilization{GPU: 101, Memory: 10}

	s := b.Build(0, dev)

	assert.Nil(t, s.Utilization)
}

func TestBuild_ECCNotSupported(t *testing.T) {
	b, ec, m := newTestBuilder()
	dev := telemetrytest.NewDevice("GeForce RTX 4090", "GPU-1").
		Fail(telemetrytest.MetricECC, fmt.Errorf("nvml: GetTotalEccErrors: %w", telemetry.ErrNotSupported))

	s := b.Build(0, dev)

	assert.Nil(t, s.ECC)
	require.Equal(t, 1, ec.Len())
	assert.ErrorIs(t, ec.Errors()[0].Err, telemetry.ErrNotSupported)
	assert.Equal(t, healtherrors.ErrMetricUnavailable, ec.Errors()[0].Code)
	assert.Equal(t, 1.0, failureCount(t, m, MetricECC))
}

func TestBuild_IdentityFailureIsUnknown(t *testing.T) {
	b, _, _ := newTestBuilder()
	dev := telemetrytest.NewDevice("gpu", "GPU-1").
		Fail(telemetrytest.MetricName, nil).
		Fail(telemetrytest.MetricUUID, nil)

	s := b.Build(0, dev)

	assert.Equal(t, Identity{Name: model.Unknown, UUID: model.Unknown}, s.Identity)
	require.NotNil(t, s.TemperatureCelsius)
}

func TestBuild_NilDependencies(t *testing.T) {
	b := NewBuilder(nil, nil)
	dev := telemetrytest.NewDevice("gpu", "GPU-1").Fail(telemetrytest.MetricTemperature, nil)

	assert.NotPanics(t, func() {
		s := b.Build(0, dev)
		assert.Nil(t, s.TemperatureCelsius)
	})
}

func TestHandleUnavailable(t *testing.T) {
	b, ec, m := newTestBuilder()

	s := b.HandleUnavailable(3, telemetrytest.ErrInjected)

	assert.Equal(t, 3, s.Index)
	assert.Equal(t, model.Unknown, s.Identity.Name)
	assert.Nil(t, s.Memory)
	assert.Nil(t, s.TemperatureCelsius)
	assert.Nil(t, s.ECC)
	assert.False(t, s.ProcessCountKnown)
	assert.Equal(t, "gpu3.handle", ec.Errors()[0].Component)
	assert.Equal(t, 1.0, failureCount(t, m, MetricHandle))
}
