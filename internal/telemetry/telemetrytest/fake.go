// Package telemetrytest provides an in-memory telemetry.Provider for tests.
package telemetrytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

// Metric names used as keys in Device.Errs and recorded in Device.Calls.
const (
	MetricName        = "name"
	MetricUUID        = "uuid"
	MetricMemory      = "memory"
	MetricTemperature = "temperature"
	MetricUtilization = "utilization"
	MetricPowerDraw   = "power_draw"
	MetricPowerLimit  = "power_limit"
	MetricPCIe        = "pcie"
	MetricECC         = "ecc_errors"
	MetricProcesses   = "processes"
)

// ErrInjected is the default error returned for failures configured via Errs.
var ErrInjected = errors.New("telemetrytest: injected failure")

// Device is a scripted telemetry.Device. A metric listed in Errs fails with
// the mapped error; everything else returns the configured value.
type Device struct {
	DeviceName  string
	DeviceUUID  string
	Memory      telemetry.MemoryInfo
	TempC       int
	Util        telemetry.Utilization
	DrawWatts   float64
	LimitWatts  float64
	Link        telemetry.PCIeLink
	Corrected   uint64
	Uncorrected uint64
	Processes   int
	Errs        map[string]error

	mu    sync.Mutex
	calls []string
}

// NewDevice returns a healthy Device with plausible data-center values.
func NewDevice(name, uuid string) *Device {
	return &Device{
		DeviceName: name,
		DeviceUUID: uuid,
		Memory: telemetry.MemoryInfo{
			Total: 80 << 30,
			Used:  20 << 30,
			Free:  60 << 30,
		},
		TempC:      55,
		Util:       telemetry.Utilization{GPU: 40, Memory: 25},
		DrawWatts:  250,
		LimitWatts: 400,
		Link:       telemetry.PCIeLink{CurrentGeneration: 4, CurrentWidth: 16, MaxGeneration: 4, MaxWidth: 16},
		Processes:  2,
	}
}

// Fail makes metric fail with err (ErrInjected when err is nil) and returns d.
func (d *Device) Fail(metric string, err error) *Device {
	if err == nil {
		err = ErrInjected
	}
	if d.Errs == nil {
		d.Errs = make(map[string]error)
	}
	d.Errs[metric] = err
	return d
}

// Calls returns the metrics queried so far, in call order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *Device) record(metric string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, metric)
	return d.Errs[metric]
}

func (d *Device) Name() (string, error) {
	if err := d.record(MetricName); err != nil {
		return "", err
	}
	return d.DeviceName, nil
}

func (d *Device) UUID() (string, error) {
	if err := d.record(MetricUUID); err != nil {
		return "", err
	}
	return d.DeviceUUID, nil
}

func (d *Device) MemoryInfo() (telemetry.MemoryInfo, error) {
	if err := d.record(MetricMemory); err != nil {
		return telemetry.MemoryInfo{}, err
	}
	return d.Memory, nil
}

func (d *Device) Temperature() (int, error) {
	if err := d.record(MetricTemperature); err != nil {
		return 0, err
	}
	return d.TempC, nil
}

func (d *Device) Utilization() (telemetry.Utilization, error) {
	if err := d.record(MetricUtilization); err != nil {
		return telemetry.Utilization{}, err
	}
	return d.Util, nil
}

func (d *Device) PowerDraw() (float64, error) {
	if err := d.record(MetricPowerDraw); err != nil {
		return 0, err
	}
	return d.DrawWatts, nil
}

func (d *Device) PowerLimit() (float64, error) {
	if err := d.record(MetricPowerLimit); err != nil {
		return 0, err
	}
	return d.LimitWatts, nil
}

func (d *Device) PCIeLink() (telemetry.PCIeLink, error) {
	if err := d.record(MetricPCIe); err != nil {
		return telemetry.PCIeLink{}, err
	}
	return d.Link, nil
}

func (d *Device) ECCErrors(counter telemetry.ECCCounter) (uint64, error) {
	if err := d.record(MetricECC); err != nil {
		return 0, err
	}
	if counter == telemetry.ECCCorrected {
		return d.Corrected, nil
	}
	return d.Uncorrected, nil
}

func (d *Device) ComputeProcessCount() (int, error) {
	if err := d.record(MetricProcesses); err != nil {
		return 0, err
	}
	return d.Processes, nil
}

// Provider is a scripted telemetry.Provider backed by a slice of Devices.
type Provider struct {
	Devices     []*Device
	Driver      string
	CUDAVersion int

	InitErr    error
	CountErr   error
	DriverErr  error
	CUDAErr    error
	HandleErrs map[int]error
	// Count overrides len(Devices) when non-nil.
	Count *int

	mu            sync.Mutex
	initCalls     int
	shutdownCalls int
}

// NewProvider returns a Provider with the given devices and typical versions.
func NewProvider(devices ...*Device) *Provider {
	return &Provider{
		Devices:     devices,
		Driver:      "535.154.05",
		CUDAVersion: 12020,
	}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Init(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initCalls++
	return p.InitErr
}

func (p *Provider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownCalls++
	return nil
}

// InitCalls returns how many times Init was called.
func (p *Provider) InitCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initCalls
}

// ShutdownCalls returns how many times Shutdown was called.
func (p *Provider) ShutdownCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdownCalls
}

func (p *Provider) DeviceCount(_ context.Context) (int, error) {
	if p.CountErr != nil {
		return 0, p.CountErr
	}
	if p.Count != nil {
		return *p.Count, nil
	}
	return len(p.Devices), nil
}

func (p *Provider) DeviceByIndex(_ context.Context, index int) (telemetry.Device, error) {
	if err := p.HandleErrs[index]; err != nil {
		return nil, err
	}
	if index < 0 || index >= len(p.Devices) {
		return nil, fmt.Errorf("telemetrytest: no device at index %d", index)
	}
	return p.Devices[index], nil
}

func (p *Provider) DriverVersion() (string, error) {
	if p.DriverErr != nil {
		return "", p.DriverErr
	}
	return p.Driver, nil
}

func (p *Provider) CUDADriverVersion() (int, error) {
	if p.CUDAErr != nil {
		return 0, p.CUDAErr
	}
	return p.CUDAVersion, nil
}
