package smi

import (
	"fmt"
	"strings"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

const mib = 1 << 20

// device reads one <gpu> element of the captured report.
type device struct {
	gpu *smiGPU
}

func (d *device) Name() (string, error) {
	if d.gpu.ProductName == "" || notAvailable(d.gpu.ProductName) {
		return "", fmt.Errorf("smi: product_name: %w", telemetry.ErrNotSupported)
	}
	return d.gpu.ProductName, nil
}

func (d *device) UUID() (string, error) {
	if d.gpu.UUID == "" || notAvailable(d.gpu.UUID) {
		return "", fmt.Errorf("smi: uuid: %w", telemetry.ErrNotSupported)
	}
	return d.gpu.UUID, nil
}

// MemoryInfo converts MiB to bytes and counts reserved memory as used.
func (d *device) MemoryInfo() (telemetry.MemoryInfo, error) {
	total, err := quantity("fb_memory_usage.total", d.gpu.FBMemory.Total, "MiB")
	if err != nil {
		return telemetry.MemoryInfo{}, err
	}
	free, err := quantity("fb_memory_usage.free", d.gpu.FBMemory.Free, "MiB")
	if err != nil {
		return telemetry.MemoryInfo{}, err
	}
	if free > total {
		return telemetry.MemoryInfo{}, fmt.Errorf("smi: fb_memory_usage: free %v MiB exceeds total %v MiB", free, total)
	}
	t := uint64(total) * mib
	f := uint64(free) * mib
	return telemetry.MemoryInfo{Total: t, Free: f, Used: t - f}, nil
}

func (d *device) Temperature() (int, error) {
	return integer("temperature.gpu_temp", d.gpu.Temperature.GPUTemp, "C")
}

func (d *device) Utilization() (telemetry.Utilization, error) {
	gpu, err := integer("utilization.gpu_util", d.gpu.Utilization.GPUUtil, "%")
	if err != nil {
		return telemetry.Utilization{}, err
	}
	mem, err := integer("utilization.memory_util", d.gpu.Utilization.MemoryUtil, "%")
	if err != nil {
		return telemetry.Utilization{}, err
	}
	if gpu < 0 || mem < 0 {
		return telemetry.Utilization{}, fmt.Errorf("smi: negative utilization %d%%/%d%%", gpu, mem)
	}
	return telemetry.Utilization{GPU: uint32(gpu), Memory: uint32(mem)}, nil
}

func (d *device) power() *smiPowerReadings {
	if d.gpu.GPUPowerReadings != nil {
		return d.gpu.GPUPowerReadings
	}
	if d.gpu.PowerReadings != nil {
		return d.gpu.PowerReadings
	}
	return &smiPowerReadings{}
}

func (d *device) PowerDraw() (float64, error) {
	return quantity("power_readings.power_draw", d.power().PowerDraw, "W")
}

// PowerLimit prefers the enforced limit over the configured one.
func (d *device) PowerLimit() (float64, error) {
	pr := d.power()
	return quantity("power_readings.power_limit",
		firstReported(pr.CurrentPowerLimit, pr.EnforcedPowerLimit, pr.PowerLimit), "W")
}

func (d *device) PCIeLink() (telemetry.PCIeLink, error) {
	info := d.gpu.PCI.GPULinkInfo
	var link telemetry.PCIeLink
	var err error

	if link.CurrentGeneration, err = integer("pcie_gen.current_link_gen", info.PCIeGen.CurrentLinkGen, ""); err != nil {
		return telemetry.PCIeLink{}, err
	}
	if link.MaxGeneration, err = integer("pcie_gen.max_link_gen", info.PCIeGen.MaxLinkGen, ""); err != nil {
		return telemetry.PCIeLink{}, err
	}
	if link.CurrentWidth, err = integer("link_widths.current_link_width", info.LinkWidths.CurrentLinkWidth, "x"); err != nil {
		return telemetry.PCIeLink{}, err
	}
	if link.MaxWidth, err = integer("link_widths.max_link_width", info.LinkWidths.MaxLinkWidth, "x"); err != nil {
		return telemetry.PCIeLink{}, err
	}
	return link, nil
}

// ECCErrors sums the volatile SRAM and DRAM counters, or reads the legacy
// single/double bit totals on older drivers.
func (d *device) ECCErrors(counter telemetry.ECCCounter) (uint64, error) {
	v := d.gpu.ECCErrors.Volatile
	switch counter {
	case telemetry.ECCCorrected:
		if v.SingleBit != nil {
			return count("ecc_errors.volatile.single_bit.total", v.SingleBit.Total)
		}
		return sumCounts("ecc_errors.volatile.correctable", v.SRAMCorrectable, v.DRAMCorrectable)
	case telemetry.ECCUncorrected:
		if v.DoubleBit != nil {
			return count("ecc_errors.volatile.double_bit.total", v.DoubleBit.Total)
		}
		return sumCounts("ecc_errors.volatile.uncorrectable",
			v.SRAMUncorrectable, v.SRAMUncorrectableParity, v.SRAMUncorrectableSECDED, v.DRAMUncorrectable)
	default:
		return 0, fmt.Errorf("smi: unknown ECC counter %v", counter)
	}
}

// ComputeProcessCount counts compute ("C" and "C+G") processes.
func (d *device) ComputeProcessCount() (int, error) {
	if d.gpu.Processes == nil {
		return 0, fmt.Errorf("smi: processes: %w", telemetry.ErrNotSupported)
	}
	n := 0
	for _, p := range d.gpu.Processes.Processes {
		if strings.Contains(p.Type, "C") {
			n++
		}
	}
	return n, nil
}
