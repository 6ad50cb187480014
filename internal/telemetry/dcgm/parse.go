package dcgm

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	prommodel "github.com/prometheus/common/model"
)

const (
	// sentinelThreshold is the threshold above which DCGM metric values are
	// treated as "blank" sentinel values (~1.8e19) and rejected.
	sentinelThreshold = 1e15

	// mibToBytes converts mebibytes to bytes.
	mibToBytes = 1048576
)

const (
	metricDevFBUsed           = "DCGM_FI_DEV_FB_USED"
	metricDevFBFree           = "DCGM_FI_DEV_FB_FREE"
	metricDevFBTotal          = "DCGM_FI_DEV_FB_TOTAL"
	metricDevGPUTemp          = "DCGM_FI_DEV_GPU_TEMP"
	metricDevGPUUtil          = "DCGM_FI_DEV_GPU_UTIL"
	metricDevMemCopyUtil      = "DCGM_FI_DEV_MEM_COPY_UTIL"
	metricDevPowerUsage       = "DCGM_FI_DEV_POWER_USAGE"
	metricDevPowerMgmtLimit   = "DCGM_FI_DEV_POWER_MGMT_LIMIT"
	metricDevECCSBEVolTotal   = "DCGM_FI_DEV_ECC_SBE_VOL_TOTAL"
	metricDevECCDBEVolTotal   = "DCGM_FI_DEV_ECC_DBE_VOL_TOTAL"
	metricDevPCIeLinkGen      = "DCGM_FI_DEV_PCIE_LINK_GEN"
	metricDevPCIeLinkWidth    = "DCGM_FI_DEV_PCIE_LINK_WIDTH"
	metricDevPCIeMaxLinkGen   = "DCGM_FI_DEV_PCIE_MAX_LINK_GEN"
	metricDevPCIeMaxLinkWidth = "DCGM_FI_DEV_PCIE_MAX_LINK_WIDTH"
)

// knownFields is the set of DCGM fields kept per device; everything else in
// the exposition is ignored.
var knownFields = map[string]bool{
	metricDevFBUsed:           true,
	metricDevFBFree:           true,
	metricDevFBTotal:          true,
	metricDevGPUTemp:          true,
	metricDevGPUUtil:          true,
	metricDevMemCopyUtil:      true,
	metricDevPowerUsage:       true,
	metricDevPowerMgmtLimit:   true,
	metricDevECCSBEVolTotal:   true,
	metricDevECCDBEVolTotal:   true,
	metricDevPCIeLinkGen:      true,
	metricDevPCIeLinkWidth:    true,
	metricDevPCIeMaxLinkGen:   true,
	metricDevPCIeMaxLinkWidth: true,
}

// gpuMetrics holds the fields scraped for one GPU.
type gpuMetrics struct {
	gpu       string
	uuid      string
	modelName string
	values    map[string]float64
}

// exposition is one parsed dcgm-exporter scrape.
type exposition struct {
	driverVersion string
	gpus          []*gpuMetrics
}

// parseExposition parses Prometheus text from dcgm-exporter into per-GPU
// field values, sorted by gpu index.
func parseExposition(r io.Reader) (*exposition, error) {
	parser := expfmt.NewTextParser(prommodel.UTF8Validation)
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("dcgm: parse exposition: %w", err)
	}

	exp := &exposition{}
	byKey := make(map[string]*gpuMetrics)

	for name, family := range families {
		if !knownFields[name] {
			continue
		}
		for _, m := range family.GetMetric() {
			l := labelsOf(m)
			key := l.uuid
			if key == "" {
				key = l.gpu
			}
			if key == "" {
				continue
			}

			g, ok := byKey[key]
			if !ok {
				g = &gpuMetrics{gpu: l.gpu, uuid: l.uuid, modelName: l.modelName, values: make(map[string]float64)}
				byKey[key] = g
			}
			if exp.driverVersion == "" {
				exp.driverVersion = l.driverVersion
			}

			v, ok := sampleValue(m)
			if !ok || isSentinel(v) {
				continue
			}
			g.values[name] = v
		}
	}

	exp.gpus = make([]*gpuMetrics, 0, len(byKey))
	for _, g := range byKey {
		exp.gpus = append(exp.gpus, g)
	}
	sort.Slice(exp.gpus, func(i, j int) bool {
		return gpuLess(exp.gpus[i], exp.gpus[j])
	})
	return exp, nil
}

type dcgmLabels struct {
	gpu           string
	uuid          string
	modelName     string
	driverVersion string
}

// labelsOf maps the series labels, accepting both "UUID" and "uuid".
func labelsOf(m *dto.Metric) dcgmLabels {
	var l dcgmLabels
	for _, lp := range m.GetLabel() {
		switch lp.GetName() {
		case "gpu":
			l.gpu = lp.GetValue()
		case "UUID", "uuid":
			l.uuid = lp.GetValue()
		case "modelName":
			l.modelName = lp.GetValue()
		case "DCGM_FI_DRIVER_VERSION":
			l.driverVersion = lp.GetValue()
		}
	}
	return l
}

// sampleValue returns the value of a gauge, counter or untyped sample.
func sampleValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.GetGauge().GetValue(), true
	case m.Counter != nil:
		return m.GetCounter().GetValue(), true
	case m.Untyped != nil:
		return m.GetUntyped().GetValue(), true
	}
	return 0, false
}

// gpuLess orders devices numerically by gpu label, then by UUID.
func gpuLess(a, b *gpuMetrics) bool {
	ai, aErr := strconv.Atoi(a.gpu)
	bi, bErr := strconv.Atoi(b.gpu)
	switch {
	case aErr == nil && bErr == nil && ai != bi:
		return ai < bi
	case aErr == nil && bErr != nil:
		return true
	case aErr != nil && bErr == nil:
		return false
	case a.gpu != b.gpu:
		return a.gpu < b.gpu
	}
	return a.uuid < b.uuid
}

// isSentinel returns true if the value is a DCGM sentinel ("blank") value.
// DCGM uses very large values (~1.8e19) to indicate missing/blank metrics.
func isSentinel(v float64) bool {
	return v > sentinelThreshold
}
