// Package snapshot converts raw telemetry for one GPU into an immutable,
// normalized DeviceSnapshot. Optional metrics are pointers: nil means the
// provider could not supply the value.
package snapshot

import "github.com/kubeadapt/gpu-health/pkg/model"

// Identity names a device.
type Identity struct {
	Name string
	UUID string
}

// Memory holds framebuffer memory in bytes. Used+Free == Total always holds.
type Memory struct {
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

// Utilization holds GPU and memory controller utilization in percent (0-100).
type Utilization struct {
	GPUPercent    uint32
	MemoryPercent uint32
}

// PCIeLink holds the current and maximum PCIe link state.
type PCIeLink struct {
	CurrentGeneration int
	CurrentWidth      int
	MaxGeneration     int
	MaxWidth          int
}

// ECCErrors holds volatile ECC error counters.
type ECCErrors struct {
	Corrected   uint64
	Uncorrected uint64
}

// DeviceSnapshot is one point-in-time capture of a device's metrics. It is
// built once per run and never modified afterwards.
type DeviceSnapshot struct {
	Index    int
	Identity Identity

	Memory             *Memory
	TemperatureCelsius *int
	Utilization        *Utilization
	PowerDrawWatts     *float64
	PowerLimitWatts    *float64
	PCIe               *PCIeLink
	ECC                *ECCErrors

	// ActiveProcessCount is 0 when the query failed; ProcessCountKnown
	// distinguishes that from a confirmed zero.
	ActiveProcessCount int
	ProcessCountKnown  bool
}

// Unavailable returns the snapshot of a device whose handle could not be
// obtained: every metric unavailable, identity unknown.
func Unavailable(index int) *DeviceSnapshot {
	return &DeviceSnapshot{
		Index:    index,
		Identity: Identity{Name: model.Unknown, UUID: model.Unknown},
	}
}
