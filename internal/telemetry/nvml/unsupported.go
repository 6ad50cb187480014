//go:build !linux || !cgo

package nvml

import (
	"context"
	"errors"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

var errUnavailable = errors.New("nvml: not available in this build (requires linux and cgo)")

// Provider is a placeholder on platforms without NVML support. Init always
// fails, which the report aggregator treats as a fatal provider error.
type Provider struct{}

// New returns a Provider whose Init always fails.
func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return Name }

func (p *Provider) Init(context.Context) error { return errUnavailable }

func (p *Provider) Shutdown() error { return nil }

func (p *Provider) DeviceCount(context.Context) (int, error) { return 0, errUnavailable }

func (p *Provider) DeviceByIndex(context.Context, int) (telemetry.Device, error) {
	return nil, errUnavailable
}

func (p *Provider) DriverVersion() (string, error) { return "", errUnavailable }

func (p *Provider) CUDADriverVersion() (int, error) { return 0, errUnavailable }

var _ telemetry.Provider = (*Provider)(nil)
