//go:build linux && cgo

package nvml

import (
	nvmllib "github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

// device adapts an NVML device handle to telemetry.Device.
type device struct {
	p *Provider
	h nvmllib.Device
}

func (d *device) Name() (string, error) {
	v, ret := d.h.GetName()
	if ret != nvmllib.SUCCESS {
		return "", d.p.errorf("name", ret)
	}
	return v, nil
}

func (d *device) UUID() (string, error) {
	v, ret := d.h.GetUUID()
	if ret != nvmllib.SUCCESS {
		return "", d.p.errorf("uuid", ret)
	}
	return v, nil
}

// MemoryInfo folds driver-reserved framebuffer into Used so that
// Used+Free == Total. Recent drivers report reserved memory separately.
func (d *device) MemoryInfo() (telemetry.MemoryInfo, error) {
	m, ret := d.h.GetMemoryInfo()
	if ret != nvmllib.SUCCESS {
		return telemetry.MemoryInfo{}, d.p.errorf("memory info", ret)
	}
	info := telemetry.MemoryInfo{Total: m.Total, Free: m.Free, Used: m.Used}
	if m.Free <= m.Total {
		info.Used = m.Total - m.Free
	}
	return info, nil
}

func (d *device) Temperature() (int, error) {
	v, ret := d.h.GetTemperature(nvmllib.TEMPERATURE_GPU)
	if ret != nvmllib.SUCCESS {
		return 0, d.p.errorf("temperature", ret)
	}
	return int(v), nil
}

func (d *device) Utilization() (telemetry.Utilization, error) {
	u, ret := d.h.GetUtilizationRates()
	if ret != nvmllib.SUCCESS {
		return telemetry.Utilization{}, d.p.errorf("utilization", ret)
	}
	return telemetry.Utilization{GPU: u.Gpu, Memory: u.Memory}, nil
}

// PowerDraw converts NVML milliwatts to watts.
func (d *device) PowerDraw() (float64, error) {
	mw, ret := d.h.GetPowerUsage()
	if ret != nvmllib.SUCCESS {
		return 0, d.p.errorf("power usage", ret)
	}
	return float64(mw) / 1000, nil
}

// PowerLimit returns the enforced limit, which accounts for both the
// management limit and any out-of-band cap.
func (d *device) PowerLimit() (float64, error) {
	mw, ret := d.h.GetEnforcedPowerLimit()
	if ret != nvmllib.SUCCESS {
		return 0, d.p.errorf("power limit", ret)
	}
	return float64(mw) / 1000, nil
}

func (d *device) PCIeLink() (telemetry.PCIeLink, error) {
	var link telemetry.PCIeLink
	var ret nvmllib.Return

	if link.CurrentGeneration, ret = d.h.GetCurrPcieLinkGeneration(); ret != nvmllib.SUCCESS {
		return telemetry.PCIeLink{}, d.p.errorf("pcie current generation", ret)
	}
	if link.CurrentWidth, ret = d.h.GetCurrPcieLinkWidth(); ret != nvmllib.SUCCESS {
		return telemetry.PCIeLink{}, d.p.errorf("pcie current width", ret)
	}
	if link.MaxGeneration, ret = d.h.GetMaxPcieLinkGeneration(); ret != nvmllib.SUCCESS {
		return telemetry.PCIeLink{}, d.p.errorf("pcie max generation", ret)
	}
	if link.MaxWidth, ret = d.h.GetMaxPcieLinkWidth(); ret != nvmllib.SUCCESS {
		return telemetry.PCIeLink{}, d.p.errorf("pcie max width", ret)
	}
	return link, nil
}

// ECCErrors reads the volatile counter, which resets on driver reload.
func (d *device) ECCErrors(counter telemetry.ECCCounter) (uint64, error) {
	errType := nvmllib.MEMORY_ERROR_TYPE_CORRECTED
	if counter == telemetry.ECCUncorrected {
		errType = nvmllib.MEMORY_ERROR_TYPE_UNCORRECTED
	}
	v, ret := d.h.GetTotalEccErrors(errType, nvmllib.VOLATILE_ECC)
	if ret != nvmllib.SUCCESS {
		return 0, d.p.errorf("ecc "+counter.String(), ret)
	}
	return v, nil
}

func (d *device) ComputeProcessCount() (int, error) {
	procs, ret := d.h.GetComputeRunningProcesses()
	if ret != nvmllib.SUCCESS {
		return 0, d.p.errorf("compute processes", ret)
	}
	return len(procs), nil
}
