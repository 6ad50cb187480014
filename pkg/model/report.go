package model

import "time"

// Unknown is reported for process-wide values the provider could not supply.
const Unknown = "Unknown"

// HealthReport is the root artifact of one run. Field order is the
// serialization order and must stay stable for reproducible diffs.
type HealthReport struct {
	Timestamp     time.Time            `json:"timestamp" yaml:"timestamp" cbor:"timestamp"`
	DriverVersion string               `json:"driver_version" yaml:"driver_version" cbor:"driver_version"`
	CUDAVersion   string               `json:"cuda_version" yaml:"cuda_version" cbor:"cuda_version"`
	GPUCount      int                  `json:"gpu_count" yaml:"gpu_count" cbor:"gpu_count"`
	GPUs          []DeviceDetail       `json:"gpus" yaml:"gpus" cbor:"gpus"`
	HealthChecks  []DeviceHealthResult `json:"health_checks" yaml:"health_checks" cbor:"health_checks"`
	OverallStatus Status               `json:"overall_status" yaml:"overall_status" cbor:"overall_status"`
}

// DeviceDetail is the raw evidence captured for one GPU, independent of the
// verdicts. A nil section means the provider could not supply it.
type DeviceDetail struct {
	Index              int                `json:"index" yaml:"index" cbor:"index"`
	Name               string             `json:"name" yaml:"name" cbor:"name"`
	UUID               string             `json:"uuid" yaml:"uuid" cbor:"uuid"`
	Memory             *MemoryDetail      `json:"memory" yaml:"memory" cbor:"memory"`
	Temperature        *TemperatureDetail `json:"temperature" yaml:"temperature" cbor:"temperature"`
	Utilization        *UtilizationDetail `json:"utilization" yaml:"utilization" cbor:"utilization"`
	Power              *PowerDetail       `json:"power" yaml:"power" cbor:"power"`
	PCIe               *PCIeDetail        `json:"pcie" yaml:"pcie" cbor:"pcie"`
	ECCErrors          *ECCDetail         `json:"ecc_errors" yaml:"ecc_errors" cbor:"ecc_errors"`
	Processes          int                `json:"processes" yaml:"processes" cbor:"processes"`
	ProcessesAvailable bool               `json:"processes_available" yaml:"processes_available" cbor:"processes_available"`
}

// MemoryDetail holds framebuffer memory in bytes.
type MemoryDetail struct {
	Total              uint64   `json:"total" yaml:"total" cbor:"total"`
	Free               uint64   `json:"free" yaml:"free" cbor:"free"`
	Used               uint64   `json:"used" yaml:"used" cbor:"used"`
	UtilizationPercent *float64 `json:"utilization_percent" yaml:"utilization_percent" cbor:"utilization_percent"`
}

// TemperatureDetail holds the GPU core temperature.
type TemperatureDetail struct {
	GPU  int    `json:"gpu" yaml:"gpu" cbor:"gpu"`
	Unit string `json:"unit" yaml:"unit" cbor:"unit"`
}

// UtilizationDetail holds GPU and memory controller utilization percentages.
type UtilizationDetail struct {
	GPU    uint32 `json:"gpu" yaml:"gpu" cbor:"gpu"`
	Memory uint32 `json:"memory" yaml:"memory" cbor:"memory"`
}

// PowerDetail holds power draw and enforced limit. Either value may be nil
// when only one of the two queries succeeded.
type PowerDetail struct {
	Draw  *float64 `json:"draw" yaml:"draw" cbor:"draw"`
	Limit *float64 `json:"limit" yaml:"limit" cbor:"limit"`
	Unit  string   `json:"unit" yaml:"unit" cbor:"unit"`
}

// PCIeDetail holds the current and maximum PCIe link state.
type PCIeDetail struct {
	CurrentGen   int `json:"current_gen" yaml:"current_gen" cbor:"current_gen"`
	CurrentWidth int `json:"current_width" yaml:"current_width" cbor:"current_width"`
	MaxGen       int `json:"max_gen" yaml:"max_gen" cbor:"max_gen"`
	MaxWidth     int `json:"max_width" yaml:"max_width" cbor:"max_width"`
}

// ECCDetail holds volatile ECC error counters.
type ECCDetail struct {
	Corrected   uint64 `json:"corrected" yaml:"corrected" cbor:"corrected"`
	Uncorrected uint64 `json:"uncorrected" yaml:"uncorrected" cbor:"uncorrected"`
}
