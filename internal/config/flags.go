package config

import "github.com/spf13/pflag"

// BindFlags registers command-line flags on fs, using the current values of
// c as defaults. Call it after Load: flags given on the command line then
// override the environment. The API key has no flag so it never shows up in
// process listings.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Output, "output", "o", c.Output, "report output path; a .zst suffix compresses it")
	fs.StringVarP(&c.Format, "format", "f", c.Format, "report format: json, yaml or cbor")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "print the report to stdout")

	fs.StringVar(&c.Provider, "provider", c.Provider, "telemetry provider: nvml, smi or dcgm")
	fs.StringVar(&c.NvidiaSMI, "nvidia-smi", c.NvidiaSMI, "nvidia-smi binary used by the smi provider")
	fs.StringVar(&c.DCGMEndpoint, "dcgm-endpoint", c.DCGMEndpoint, "dcgm-exporter metrics URL used by the dcgm provider")
	fs.IntVar(&c.Parallelism, "parallelism", c.Parallelism, "number of devices polled concurrently")
	fs.BoolVar(&c.CheckPCIe, "check-pcie", c.CheckPCIe, "also warn on degraded PCIe link width")

	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "write Prometheus metrics to this node_exporter textfile")

	fs.StringVar(&c.PushURL, "push-url", c.PushURL, "POST the report to this collector URL")
	fs.BoolVar(&c.AllowInsecure, "allow-insecure", c.AllowInsecure, "allow an http:// push URL")
	fs.IntVar(&c.MaxRetries, "max-retries", c.MaxRetries, "push retries after the first attempt")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "push request timeout")
	fs.StringVar(&c.NodeName, "node-name", c.NodeName, "node name sent with pushed reports")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
}
