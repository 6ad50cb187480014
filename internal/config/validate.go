package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

var (
	validFormats   = []string{"json", "yaml", "cbor"}
	validProviders = []string{"nvml", "smi", "dcgm"}
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("config: output path is required")
	}

	if !slices.Contains(validFormats, strings.ToLower(c.Format)) {
		return fmt.Errorf("config: format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Format)
	}

	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("config: provider must be one of %s, got %q", strings.Join(validProviders, ", "), c.Provider)
	}
	if c.Provider == "smi" && c.NvidiaSMI == "" {
		return fmt.Errorf("config: GPU_HEALTH_NVIDIA_SMI is required for the smi provider")
	}
	if c.Provider == "dcgm" && c.DCGMEndpoint == "" {
		return fmt.Errorf("config: GPU_HEALTH_DCGM_ENDPOINT is required for the dcgm provider")
	}

	if c.Parallelism < 1 {
		return fmt.Errorf("config: Parallelism must be >= 1, got %d", c.Parallelism)
	}

	if c.PushURL != "" {
		if !c.AllowInsecure && !strings.HasPrefix(c.PushURL, "https://") {
			return fmt.Errorf("config: GPU_HEALTH_PUSH_URL must use https:// (got %q); set GPU_HEALTH_ALLOW_INSECURE=true to override", c.PushURL)
		}
		if c.APIKey == "" {
			return fmt.Errorf("config: GPU_HEALTH_API_KEY is required when GPU_HEALTH_PUSH_URL is set")
		}
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MaxRetries must be >= 0, got %d", c.MaxRetries)
	}

	if c.RequestTimeout < time.Second {
		return fmt.Errorf("config: RequestTimeout must be >= 1s, got %v", c.RequestTimeout)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
