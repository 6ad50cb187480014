// Package nvml implements telemetry.Provider on top of the NVIDIA Management
// Library through github.com/NVIDIA/go-nvml. NVML is loaded at Init time, so
// the package builds on hosts without a driver; it requires linux and cgo.
package nvml

// Name identifies the provider in logs and errors.
const Name = "nvml"
