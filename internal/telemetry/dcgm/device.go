package dcgm

import (
	"fmt"
	"math"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

type device struct {
	m *gpuMetrics
}

func (d *device) value(field string) (float64, error) {
	v, ok := d.m.values[field]
	if !ok {
		return 0, fmt.Errorf("dcgm: gpu %s %s: %w", d.m.gpu, field, telemetry.ErrNotSupported)
	}
	return v, nil
}

func (d *device) Name() (string, error) {
	if d.m.modelName == "" {
		return "", fmt.Errorf("dcgm: gpu %s modelName label: %w", d.m.gpu, telemetry.ErrNotSupported)
	}
	return d.m.modelName, nil
}

func (d *device) UUID() (string, error) {
	if d.m.uuid == "" {
		return "", fmt.Errorf("dcgm: gpu %s UUID label: %w", d.m.gpu, telemetry.ErrNotSupported)
	}
	return d.m.uuid, nil
}

// MemoryInfo derives used from total and free; DCGM_FI_DEV_FB_USED leaves
// out driver-reserved memory. Without FB_TOTAL, total is used + free.
func (d *device) MemoryInfo() (telemetry.MemoryInfo, error) {
	free, err := d.value(metricDevFBFree)
	if err != nil {
		return telemetry.MemoryInfo{}, err
	}
	total, err := d.value(metricDevFBTotal)
	if err != nil {
		used, uerr := d.value(metricDevFBUsed)
		if uerr != nil {
			return telemetry.MemoryInfo{}, err
		}
		total = used + free
	}
	if free > total {
		return telemetry.MemoryInfo{}, fmt.Errorf("dcgm: gpu %s free memory %.0f MiB exceeds total %.0f MiB", d.m.gpu, free, total)
	}

	t := uint64(total) * mibToBytes
	f := uint64(free) * mibToBytes
	return telemetry.MemoryInfo{Total: t, Free: f, Used: t - f}, nil
}

func (d *device) Temperature() (int, error) {
	v, err := d.value(metricDevGPUTemp)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

func (d *device) Utilization() (telemetry.Utilization, error) {
	gpu, err := d.value(metricDevGPUUtil)
	if err != nil {
		return telemetry.Utilization{}, err
	}
	mem, err := d.value(metricDevMemCopyUtil)
	if err != nil {
		return telemetry.Utilization{}, err
	}
	return telemetry.Utilization{GPU: uint32(math.Round(gpu)), Memory: uint32(math.Round(mem))}, nil
}

func (d *device) PowerDraw() (float64, error) {
	return d.value(metricDevPowerUsage)
}

func (d *device) PowerLimit() (float64, error) {
	return d.value(metricDevPowerMgmtLimit)
}

func (d *device) PCIeLink() (telemetry.PCIeLink, error) {
	var vals [4]int
	for i, field := range []string{metricDevPCIeLinkGen, metricDevPCIeLinkWidth, metricDevPCIeMaxLinkGen, metricDevPCIeMaxLinkWidth} {
		v, err := d.value(field)
		if err != nil {
			return telemetry.PCIeLink{}, err
		}
		vals[i] = int(v)
	}
	return telemetry.PCIeLink{
		CurrentGeneration: vals[0],
		CurrentWidth:      vals[1],
		MaxGeneration:     vals[2],
		MaxWidth:          vals[3],
	}, nil
}

// ECCErrors maps single-bit errors to corrected and double-bit errors to
// uncorrected, both from the volatile totals.
func (d *device) ECCErrors(counter telemetry.ECCCounter) (uint64, error) {
	field := metricDevECCSBEVolTotal
	if counter == telemetry.ECCUncorrected {
		field = metricDevECCDBEVolTotal
	}
	v, err := d.value(field)
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

func (d *device) ComputeProcessCount() (int, error) {
	return 0, fmt.Errorf("dcgm: process count: %w", telemetry.ErrNotSupported)
}
