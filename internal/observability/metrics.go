package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kubeadapt/gpu-health/pkg/model"
)

// checkStatuses is the state set exported for every check and the rollup.
var checkStatuses = []model.Status{
	model.StatusPass,
	model.StatusWarn,
	model.StatusFail,
	model.StatusUnknown,
	model.StatusNotApplicable,
}

// Metrics holds the Prometheus metrics describing one health run.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Run metrics
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	Devices          prometheus.Gauge
	OverallStatus    *prometheus.GaugeVec

	// Per-device metrics
	CheckStatus        *prometheus.GaugeVec
	TemperatureCelsius *prometheus.GaugeVec
	PowerDrawWatts     *prometheus.GaugeVec
	ECCUncorrected     *prometheus.GaugeVec

	// Telemetry metrics
	MetricQueryFailures *prometheus.CounterVec

	// Sink metrics
	ReportSizeBytes *prometheus.GaugeVec

	// Push metrics
	PushDuration prometheus.Histogram
	PushTotal    *prometheus.CounterVec
	PushRetries  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	deviceLabels := []string{"gpu", "uuid"}

	m := &Metrics{
		Registry: reg,

		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpu_health_run_duration_seconds",
			Help: "Duration of the last health run in seconds.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpu_health_last_run_timestamp_seconds",
			Help: "Unix time the last health report was generated.",
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpu_health_devices",
			Help: "Number of GPUs covered by the last health report.",
		}),
		OverallStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_health_overall_status",
			Help: "Overall status of the last health report (1 = current status).",
		}, []string{"status"}),

		CheckStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_health_check_status",
			Help: "Per-device check status of the last health report (1 = current status).",
		}, []string{"gpu", "uuid", "check", "status"}),
		TemperatureCelsius: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_health_temperature_celsius",
			Help: "GPU core temperature in degrees Celsius.",
		}, deviceLabels),
		PowerDrawWatts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_health_power_draw_watts",
			Help: "GPU board power draw in watts.",
		}, deviceLabels),
		ECCUncorrected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_health_ecc_uncorrected_errors",
			Help: "Volatile uncorrected ECC error count.",
		}, deviceLabels),

		MetricQueryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpu_health_metric_query_failures_total",
			Help: "Total number of per-device metric queries that failed.",
		}, []string{"metric"}),

		ReportSizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_health_report_size_bytes",
			Help: "Size of the written report in bytes.",
		}, []string{"encoding"}),

		PushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpu_health_push_duration_seconds",
			Help:    "Duration of report push operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		PushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpu_health_push_total",
			Help: "Total number of report push attempts.",
		}, []string{"status"}),
		PushRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpu_health_push_retries_total",
			Help: "Total number of report push retry attempts.",
		}),
	}

	// Register all metrics with the custom registry.
	reg.MustRegister(
		m.RunDuration,
		m.LastRunTimestamp,
		m.Devices,
		m.OverallStatus,
		m.CheckStatus,
		m.TemperatureCelsius,
		m.PowerDrawWatts,
		m.ECCUncorrected,
		m.MetricQueryFailures,
		m.ReportSizeBytes,
		m.PushDuration,
		m.PushTotal,
		m.PushRetries,
	)

	return m
}

// RecordReport exports a finished report: the rollup and every check as
// state sets, plus the raw temperature, power and ECC evidence.
func (m *Metrics) RecordReport(r *model.HealthReport) {
	m.LastRunTimestamp.Set(float64(r.Timestamp.Unix()))
	m.Devices.Set(float64(r.GPUCount))

	for _, s := range checkStatuses {
		m.OverallStatus.WithLabelValues(string(s)).Set(boolToFloat(s == r.OverallStatus))
	}

	uuids := make(map[int]string, len(r.GPUs))
	for _, d := range r.GPUs {
		idx := strconv.Itoa(d.Index)
		uuids[d.Index] = d.UUID
		if d.Temperature != nil {
			m.TemperatureCelsius.WithLabelValues(idx, d.UUID).Set(float64(d.Temperature.GPU))
		}
		if d.Power != nil && d.Power.Draw != nil {
			m.PowerDrawWatts.WithLabelValues(idx, d.UUID).Set(*d.Power.Draw)
		}
		if d.ECCErrors != nil {
			m.ECCUncorrected.WithLabelValues(idx, d.UUID).Set(float64(d.ECCErrors.Uncorrected))
		}
	}

	for _, hc := range r.HealthChecks {
		idx := strconv.Itoa(hc.GPUIndex)
		for _, v := range hc.Checks {
			for _, s := range checkStatuses {
				m.CheckStatus.WithLabelValues(idx, uuids[hc.GPUIndex], string(v.Check), string(s)).
					Set(boolToFloat(s == v.Status))
			}
		}
	}
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("observability: write textfile %s: %w", path, err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
