// Package dcgm implements telemetry.Provider by scraping a dcgm-exporter
// /metrics endpoint once at Init.
//
// Series are grouped per GPU by the UUID label (falling back to gpu) and
// devices are ordered by the gpu index label. Both the old-style and the
// current dcgm-exporter label schemas are accepted. DCGM "blank" sentinel
// values are treated as unsupported, as are fields the exporter was not
// configured to emit. dcgm-exporter exposes neither the CUDA driver version
// nor a process count, so those reads always report telemetry.ErrNotSupported.
package dcgm

// Name identifies the provider in logs and errors.
const Name = "dcgm"
