package config

import (
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "GPU_HEALTH_"

// Defaults.
const (
	DefaultOutput       = "/tmp/gpu_health.json"
	DefaultFormat       = "json"
	DefaultProvider     = "nvml"
	DefaultNvidiaSMI    = "nvidia-smi"
	DefaultDCGMEndpoint = "http://localhost:9400/metrics"
	DefaultLogLevel     = "info"
)

// Config holds all gpu-health configuration values.
type Config struct {
	// Report output
	Output  string // GPU_HEALTH_OUTPUT, -o/--output
	Format  string // GPU_HEALTH_FORMAT, -f/--format: json|yaml|cbor
	Verbose bool   // GPU_HEALTH_VERBOSE, -v/--verbose: echo the report to stdout

	// Telemetry
	Provider     string // GPU_HEALTH_PROVIDER: nvml|smi|dcgm
	NvidiaSMI    string // GPU_HEALTH_NVIDIA_SMI: nvidia-smi binary for the smi provider
	DCGMEndpoint string // GPU_HEALTH_DCGM_ENDPOINT: dcgm-exporter /metrics URL
	Parallelism  int    // GPU_HEALTH_PARALLELISM, default: 1 (devices polled one at a time)
	CheckPCIe    bool   // GPU_HEALTH_CHECK_PCIE, default: false

	// Node exporter textfile output; empty disables it.
	MetricsFile string // GPU_HEALTH_METRICS_FILE

	// Push to a collector; empty PushURL disables it.
	PushURL        string        // GPU_HEALTH_PUSH_URL
	APIKey         string        // GPU_HEALTH_API_KEY, env only
	AllowInsecure  bool          // GPU_HEALTH_ALLOW_INSECURE, default: false, allows an http:// PushURL
	MaxRetries     int           // GPU_HEALTH_MAX_RETRIES, default: 3
	RequestTimeout time.Duration // GPU_HEALTH_REQUEST_TIMEOUT, default: 30s
	NodeName       string        // GPU_HEALTH_NODE_NAME, default: hostname

	LogLevel string // GPU_HEALTH_LOG_LEVEL: debug|info|warn|error

	// Version is stamped at build time, not configured.
	Version string
}

// Load reads configuration from environment variables and returns a Config
// with defaults applied for any unset values.
func Load() Config {
	cfg := Config{
		Output:         envOrDefault("OUTPUT", DefaultOutput),
		Format:         envOrDefault("FORMAT", DefaultFormat),
		Verbose:        parseBool("VERBOSE", false),
		Provider:       envOrDefault("PROVIDER", DefaultProvider),
		NvidiaSMI:      envOrDefault("NVIDIA_SMI", DefaultNvidiaSMI),
		DCGMEndpoint:   envOrDefault("DCGM_ENDPOINT", DefaultDCGMEndpoint),
		Parallelism:    parseInt("PARALLELISM", 1),
		CheckPCIe:      parseBool("CHECK_PCIE", false),
		MetricsFile:    envOrDefault("METRICS_FILE", ""),
		PushURL:        envOrDefault("PUSH_URL", ""),
		APIKey:         os.Getenv(EnvPrefix + "API_KEY"),
		AllowInsecure:  parseBool("ALLOW_INSECURE", false),
		MaxRetries:     parseInt("MAX_RETRIES", 3),
		RequestTimeout: parseDuration("REQUEST_TIMEOUT", 30*time.Second),
		NodeName:       envOrDefault("NODE_NAME", ""),
		LogLevel:       envOrDefault("LOG_LEVEL", DefaultLogLevel),
	}

	if cfg.NodeName == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.NodeName = h
		}
	}

	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to treating
// the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	// Fallback: treat as integer seconds
	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
