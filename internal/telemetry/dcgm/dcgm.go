package dcgm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

const scrapeTimeout = 5 * time.Second

// Provider reads device telemetry from a dcgm-exporter endpoint.
type Provider struct {
	endpoint string
	client   *http.Client

	mu  sync.RWMutex
	exp *exposition
}

// New returns a Provider scraping endpoint, the full /metrics URL. A nil
// client uses http.DefaultClient.
func New(endpoint string, client *http.Client) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{endpoint: endpoint, client: client}
}

func (p *Provider) Name() string { return Name }

// Init scrapes the endpoint once.
func (p *Provider) Init(ctx context.Context) error {
	exp, err := p.scrape(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.exp = exp
	p.mu.Unlock()

	slog.Debug("dcgm: scrape complete", "endpoint", p.endpoint, "gpus", len(exp.gpus))
	return nil
}

func (p *Provider) Shutdown() error {
	p.mu.Lock()
	p.exp = nil
	p.mu.Unlock()
	return nil
}

func (p *Provider) scrape(ctx context.Context) (*exposition, error) {
	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dcgm: creating request for %s: %w", p.endpoint, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dcgm: scraping %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dcgm: unexpected status %d from %s", resp.StatusCode, p.endpoint)
	}

	return parseExposition(resp.Body)
}

func (p *Provider) snapshot() (*exposition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.exp == nil {
		return nil, fmt.Errorf("dcgm: provider not initialized")
	}
	return p.exp, nil
}

func (p *Provider) DeviceCount(_ context.Context) (int, error) {
	exp, err := p.snapshot()
	if err != nil {
		return 0, err
	}
	return len(exp.gpus), nil
}

func (p *Provider) DeviceByIndex(_ context.Context, index int) (telemetry.Device, error) {
	exp, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(exp.gpus) {
		return nil, fmt.Errorf("dcgm: no gpu at index %d", index)
	}
	return &device{m: exp.gpus[index]}, nil
}

// DriverVersion returns the DCGM_FI_DRIVER_VERSION label, which
// dcgm-exporter only attaches when configured to.
func (p *Provider) DriverVersion() (string, error) {
	exp, err := p.snapshot()
	if err != nil {
		return "", err
	}
	if exp.driverVersion == "" {
		return "", fmt.Errorf("dcgm: driver version label: %w", telemetry.ErrNotSupported)
	}
	return exp.driverVersion, nil
}

func (p *Provider) CUDADriverVersion() (int, error) {
	if _, err := p.snapshot(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("dcgm: cuda version: %w", telemetry.ErrNotSupported)
}

var _ telemetry.Provider = (*Provider)(nil)
