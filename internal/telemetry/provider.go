package telemetry

import (
	"context"
	"errors"
)

// ErrNotSupported is returned (possibly wrapped) by Device reads for metrics
// the device or driver does not expose, e.g. ECC counters on consumer GPUs.
var ErrNotSupported = errors.New("telemetry: not supported")

// ECCCounter selects which volatile ECC error counter to read.
type ECCCounter int

// ECC counters.
const (
	ECCCorrected ECCCounter = iota
	ECCUncorrected
)

// String returns the counter name used in logs and metric labels.
func (c ECCCounter) String() string {
	switch c {
	case ECCCorrected:
		return "corrected"
	case ECCUncorrected:
		return "uncorrected"
	default:
		return "unknown"
	}
}

// MemoryInfo holds framebuffer memory in bytes.
type MemoryInfo struct {
	Total uint64
	Free  uint64
	Used  uint64
}

// Utilization holds GPU and memory controller utilization percentages.
type Utilization struct {
	GPU    uint32
	Memory uint32
}

// PCIeLink holds the current and maximum PCIe link generation and width.
type PCIeLink struct {
	CurrentGeneration int
	CurrentWidth      int
	MaxGeneration     int
	MaxWidth          int
}

// Provider is the process-wide hardware management interface.
//
// Init must succeed before any other call; Shutdown releases what Init
// acquired. Callers should use Acquire rather than pairing these by hand.
type Provider interface {
	// Name returns the provider name (e.g., "nvml", "smi", "dcgm").
	Name() string
	Init(ctx context.Context) error
	Shutdown() error
	DeviceCount(ctx context.Context) (int, error)
	DeviceByIndex(ctx context.Context, index int) (Device, error)
	DriverVersion() (string, error)
	// CUDADriverVersion returns the CUDA version encoded as major*1000 + minor*10.
	CUDADriverVersion() (int, error)
}

// Device exposes the read-only metric queries for one GPU handle.
type Device interface {
	Name() (string, error)
	UUID() (string, error)
	MemoryInfo() (MemoryInfo, error)
	Temperature() (int, error)
	Utilization() (Utilization, error)
	// PowerDraw returns the current board power draw in watts.
	PowerDraw() (float64, error)
	// PowerLimit returns the enforced power management limit in watts.
	PowerLimit() (float64, error)
	PCIeLink() (PCIeLink, error)
	ECCErrors(counter ECCCounter) (uint64, error)
	ComputeProcessCount() (int, error)
}
