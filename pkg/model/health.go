package model

// Status is the outcome of a single check, or the rollup of a whole report.
type Status string

// Check outcomes. StatusUnknown and StatusNotApplicable never move the rollup.
const (
	StatusPass          Status = "pass"
	StatusWarn          Status = "warn"
	StatusFail          Status = "fail"
	StatusUnknown       Status = "unknown"
	StatusNotApplicable Status = "n/a"
)

// CheckKind names a policy check.
type CheckKind string

// Policy checks. CheckPCIeLink is opt-in.
const (
	CheckTemperature CheckKind = "temperature"
	CheckECCErrors   CheckKind = "ecc_errors"
	CheckPower       CheckKind = "power"
	CheckPCIeLink    CheckKind = "pcie_link"
)

// CheckVerdict is the evaluated outcome of one check against one device snapshot.
type CheckVerdict struct {
	Check  CheckKind `json:"check" yaml:"check" cbor:"check"`
	Status Status    `json:"status" yaml:"status" cbor:"status"`
	Value  *float64  `json:"value,omitempty" yaml:"value,omitempty" cbor:"value,omitempty"`
}

// DeviceHealthResult holds every verdict for one device, in registry order.
type DeviceHealthResult struct {
	GPUIndex int            `json:"gpu_index" yaml:"gpu_index" cbor:"gpu_index"`
	Checks   []CheckVerdict `json:"checks" yaml:"checks" cbor:"checks"`
}
