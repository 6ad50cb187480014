// Package smi implements telemetry.Provider by parsing the XML report of
// `nvidia-smi -q -x`. It needs no cgo and works wherever the NVIDIA driver
// utilities are installed. The report is captured once at Init; every
// device query reads from that capture.
package smi

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

// Name identifies the provider in logs and errors.
const Name = "smi"

// RunFunc executes a command and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRun runs the command on the local host.
func ExecRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		if stderr != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, stderr)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Provider reads device telemetry from nvidia-smi.
type Provider struct {
	binary string
	run    RunFunc

	mu  sync.RWMutex
	log *smiLog
}

// New returns a Provider that runs binary through run. A nil run uses ExecRun.
func New(binary string, run RunFunc) *Provider {
	if run == nil {
		run = ExecRun
	}
	return &Provider{binary: binary, run: run}
}

func (p *Provider) Name() string { return Name }

// Init captures the nvidia-smi report.
func (p *Provider) Init(ctx context.Context) error {
	out, err := p.run(ctx, p.binary, "-q", "-x")
	if err != nil {
		return fmt.Errorf("smi: run %s: %w", p.binary, err)
	}
	l, err := parseLog(out)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.log = l
	p.mu.Unlock()

	slog.Debug("smi: report captured", "gpus", len(l.GPUs), "driver", l.DriverVersion)
	return nil
}

func (p *Provider) Shutdown() error {
	p.mu.Lock()
	p.log = nil
	p.mu.Unlock()
	return nil
}

func (p *Provider) snapshot() (*smiLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.log == nil {
		return nil, fmt.Errorf("smi: provider not initialized")
	}
	return p.log, nil
}

// DeviceCount returns the number of <gpu> elements. attached_gpus is only
// cross-checked: a mismatch means the report is truncated.
func (p *Provider) DeviceCount(_ context.Context) (int, error) {
	l, err := p.snapshot()
	if err != nil {
		return 0, err
	}
	if attached, err := integer("attached_gpus", l.AttachedGPUs, ""); err == nil && attached != len(l.GPUs) {
		return 0, fmt.Errorf("smi: report lists %d gpus but attached_gpus is %d", len(l.GPUs), attached)
	}
	return len(l.GPUs), nil
}

func (p *Provider) DeviceByIndex(_ context.Context, index int) (telemetry.Device, error) {
	l, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(l.GPUs) {
		return nil, fmt.Errorf("smi: no gpu at index %d", index)
	}
	return &device{gpu: &l.GPUs[index]}, nil
}

func (p *Provider) DriverVersion() (string, error) {
	l, err := p.snapshot()
	if err != nil {
		return "", err
	}
	if l.DriverVersion == "" || notAvailable(l.DriverVersion) {
		return "", fmt.Errorf("smi: driver_version: %w", telemetry.ErrNotSupported)
	}
	return l.DriverVersion, nil
}

// CUDADriverVersion encodes the dotted cuda_version as major*1000 + minor*10.
func (p *Provider) CUDADriverVersion() (int, error) {
	l, err := p.snapshot()
	if err != nil {
		return 0, err
	}
	if l.CUDAVersion == "" || notAvailable(l.CUDAVersion) {
		return 0, fmt.Errorf("smi: cuda_version: %w", telemetry.ErrNotSupported)
	}
	return telemetry.EncodeCUDAVersion(l.CUDAVersion)
}

var _ telemetry.Provider = (*Provider)(nil)
