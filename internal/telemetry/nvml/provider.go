//go:build linux && cgo

package nvml

import (
	"context"
	"errors"
	"fmt"

	nvmllib "github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

// Provider reads device telemetry from NVML.
type Provider struct {
	lib nvmllib.Interface
}

// New returns a Provider backed by the system NVML library.
func New() *Provider {
	return NewWithLibrary(nvmllib.New())
}

// NewWithLibrary returns a Provider backed by lib.
func NewWithLibrary(lib nvmllib.Interface) *Provider {
	return &Provider{lib: lib}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Init(_ context.Context) error {
	if ret := p.lib.Init(); ret != nvmllib.SUCCESS {
		return p.errorf("init", ret)
	}
	return nil
}

func (p *Provider) Shutdown() error {
	if ret := p.lib.Shutdown(); ret != nvmllib.SUCCESS {
		return p.errorf("shutdown", ret)
	}
	return nil
}

func (p *Provider) DeviceCount(_ context.Context) (int, error) {
	n, ret := p.lib.DeviceGetCount()
	if ret != nvmllib.SUCCESS {
		return 0, p.errorf("device count", ret)
	}
	return n, nil
}

func (p *Provider) DeviceByIndex(_ context.Context, index int) (telemetry.Device, error) {
	h, ret := p.lib.DeviceGetHandleByIndex(index)
	if ret != nvmllib.SUCCESS {
		return nil, p.errorf(fmt.Sprintf("device %d handle", index), ret)
	}
	return &device{p: p, h: h}, nil
}

func (p *Provider) DriverVersion() (string, error) {
	v, ret := p.lib.SystemGetDriverVersion()
	if ret != nvmllib.SUCCESS {
		return "", p.errorf("driver version", ret)
	}
	return v, nil
}

func (p *Provider) CUDADriverVersion() (int, error) {
	v, ret := p.lib.SystemGetCudaDriverVersion()
	if ret != nvmllib.SUCCESS {
		return 0, p.errorf("CUDA driver version", ret)
	}
	return v, nil
}

// errorf converts a failed NVML return into an error. NOT_SUPPORTED wraps
// telemetry.ErrNotSupported.
func (p *Provider) errorf(op string, ret nvmllib.Return) error {
	err := fmt.Errorf("nvml: %s: %s", op, p.lib.ErrorString(ret))
	if ret == nvmllib.ERROR_NOT_SUPPORTED {
		return errors.Join(telemetry.ErrNotSupported, err)
	}
	return err
}

var _ telemetry.Provider = (*Provider)(nil)
