// Package telemetry defines the boundary between the health engine and the
// hardware management library that supplies raw per-device GPU metrics.
//
// A Provider is acquired once per run (Acquire), queried for the device count
// and per-index device handles, and released exactly once after the last
// query. Every Device read is independent: a failed read is reported as an
// error for that metric only and never invalidates the handle.
//
// Three providers ship with the tool: nvml (libnvidia-ml via go-nvml), smi
// (nvidia-smi XML output) and dcgm (a dcgm-exporter /metrics endpoint).
package telemetry
