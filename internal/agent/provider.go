package agent

import (
	"fmt"
	"net/http"

	"github.com/kubeadapt/gpu-health/internal/check"
	"github.com/kubeadapt/gpu-health/internal/config"
	"github.com/kubeadapt/gpu-health/internal/telemetry"
	"github.com/kubeadapt/gpu-health/internal/telemetry/dcgm"
	"github.com/kubeadapt/gpu-health/internal/telemetry/nvml"
	"github.com/kubeadapt/gpu-health/internal/telemetry/smi"
)

// NewProvider returns the telemetry provider selected by cfg.Provider.
func NewProvider(cfg *config.Config) (telemetry.Provider, error) {
	switch cfg.Provider {
	case nvml.Name:
		return nvml.New(), nil
	case smi.Name:
		return smi.New(cfg.NvidiaSMI, nil), nil
	case dcgm.Name:
		return dcgm.New(cfg.DCGMEndpoint, &http.Client{Timeout: cfg.RequestTimeout}), nil
	default:
		return nil, fmt.Errorf("agent: unknown provider %q", cfg.Provider)
	}
}

// NewChecks returns the default check registry, plus the PCIe link check
// when cfg.CheckPCIe is set.
func NewChecks(cfg *config.Config) (*check.Registry, error) {
	checks := check.Default()
	if cfg.CheckPCIe {
		if err := checks.Register(check.PCIeLink{}); err != nil {
			return nil, err
		}
	}
	return checks, nil
}
