package smi

import (
	"encoding/xml"
	"fmt"
)

// smiLog is the subset of `nvidia-smi -q -x` output the provider reads.
// Field names follow the XML schema; older drivers use the legacy elements
// kept alongside the current ones.
type smiLog struct {
	XMLName       xml.Name `xml:"nvidia_smi_log"`
	DriverVersion string   `xml:"driver_version"`
	CUDAVersion   string   `xml:"cuda_version"`
	AttachedGPUs  string   `xml:"attached_gpus"`
	GPUs          []smiGPU `xml:"gpu"`
}

type smiGPU struct {
	ID          string         `xml:"id,attr"`
	ProductName string         `xml:"product_name"`
	UUID        string         `xml:"uuid"`
	PCI         smiPCI         `xml:"pci"`
	FBMemory    smiMemory      `xml:"fb_memory_usage"`
	Utilization smiUtilization `xml:"utilization"`
	ECCErrors   smiECCErrors   `xml:"ecc_errors"`
	Temperature smiTemperature `xml:"temperature"`

	// Drivers >= 530 report gpu_power_readings; older ones power_readings.
	GPUPowerReadings *smiPowerReadings `xml:"gpu_power_readings"`
	PowerReadings    *smiPowerReadings `xml:"power_readings"`

	Processes *smiProcesses `xml:"processes"`
}

type smiPCI struct {
	GPULinkInfo struct {
		PCIeGen struct {
			MaxLinkGen     string `xml:"max_link_gen"`
			CurrentLinkGen string `xml:"current_link_gen"`
		} `xml:"pcie_gen"`
		LinkWidths struct {
			MaxLinkWidth     string `xml:"max_link_width"`
			CurrentLinkWidth string `xml:"current_link_width"`
		} `xml:"link_widths"`
	} `xml:"pci_gpu_link_info"`
}

type smiMemory struct {
	Total    string `xml:"total"`
	Reserved string `xml:"reserved"`
	Used     string `xml:"used"`
	Free     string `xml:"free"`
}

type smiUtilization struct {
	GPUUtil    string `xml:"gpu_util"`
	MemoryUtil string `xml:"memory_util"`
}

type smiECCErrors struct {
	Volatile smiECCCounters `xml:"volatile"`
}

type smiECCCounters struct {
	SRAMCorrectable         string `xml:"sram_correctable"`
	SRAMUncorrectable       string `xml:"sram_uncorrectable"`
	SRAMUncorrectableParity string `xml:"sram_uncorrectable_parity"`
	SRAMUncorrectableSECDED string `xml:"sram_uncorrectable_secded"`
	DRAMCorrectable         string `xml:"dram_correctable"`
	DRAMUncorrectable       string `xml:"dram_uncorrectable"`

	// Pre-Ampere drivers.
	SingleBit *smiECCBitCounters `xml:"single_bit"`
	DoubleBit *smiECCBitCounters `xml:"double_bit"`
}

type smiECCBitCounters struct {
	Total string `xml:"total"`
}

type smiTemperature struct {
	GPUTemp string `xml:"gpu_temp"`
}

type smiPowerReadings struct {
	PowerDraw          string `xml:"power_draw"`
	CurrentPowerLimit  string `xml:"current_power_limit"`
	EnforcedPowerLimit string `xml:"enforced_power_limit"`
	PowerLimit         string `xml:"power_limit"`
}

type smiProcesses struct {
	Processes []smiProcess `xml:"process_info"`
}

type smiProcess struct {
	PID  string `xml:"pid"`
	Type string `xml:"type"`
}

func parseLog(data []byte) (*smiLog, error) {
	var l smiLog
	if err := xml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("smi: failed to unmarshal nvidia-smi XML: %w", err)
	}
	return &l, nil
}
