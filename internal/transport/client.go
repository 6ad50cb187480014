// Package transport pushes finished health reports to an HTTP collector.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/kubeadapt/gpu-health/internal/config"
	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
	"github.com/kubeadapt/gpu-health/internal/observability"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Client sends HealthReports to a collector over HTTP with streaming zstd
// compression. It never buffers the full JSON payload in memory.
type Client struct {
	httpClient     *http.Client
	config         *config.Config
	metrics        *observability.Metrics
	errorCollector *healtherrors.Collector

	// backoff returns the delay before retry n (0-based).
	backoff func(n int) time.Duration
}

// NewClient creates a transport Client with middleware applied.
// Retry is handled at the Push level (not the RoundTripper) because
// the streaming io.Pipe body must be re-created on each attempt.
func NewClient(cfg *config.Config, metrics *observability.Metrics, errCollector *healtherrors.Collector) *Client {
	// Use an explicit transport instead of http.DefaultTransport to avoid
	// sharing mutable state with other code in the process.
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	transport := WithAuth(cfg.APIKey, WithLogging(slog.Default(), base))

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		config:         cfg,
		metrics:        metrics,
		errorCollector: errCollector,
		backoff:        exponentialBackoff,
	}
}

// Push streams r to the configured collector, retrying transient failures
// up to MaxRetries times. Every attempt of one Push carries the same
// X-Report-ID so the collector can deduplicate.
func (c *Client) Push(ctx context.Context, r *model.HealthReport) (*model.PushResponse, error) {
	start := time.Now()
	reportID := uuid.New().String()

	var result *model.PushResponse
	var compressedBytes int64
	var lastErr error
	var delay time.Duration

	maxAttempts := c.config.MaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.PushRetries.Inc()
			}
			if delay <= 0 {
				delay = c.backoff(attempt - 1)
			}
			if err := sleepCtx(ctx, delay); err != nil {
				lastErr = fmt.Errorf("transport: context canceled before attempt %d: %w", attempt+1, err)
				break
			}
		}

		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("transport: context canceled before attempt %d: %w", attempt+1, err)
			break
		}

		resp, n, err := c.doPush(ctx, r, reportID)
		compressedBytes = n
		if err != nil {
			lastErr = err
			if isNonRetryableError(err) {
				break
			}
			delay = 0
			var rl *RateLimitedError
			if errors.As(err, &rl) {
				delay = rl.RetryAfter
			}
			slog.Debug("transport: push attempt failed", "attempt", attempt+1, "report_id", reportID, "error", err)
			continue
		}

		result = resp
		lastErr = nil
		break
	}

	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.PushDuration.Observe(elapsed.Seconds())
		if compressedBytes > 0 {
			c.metrics.ReportSizeBytes.WithLabelValues("push_zstd").Set(float64(compressedBytes))
		}
		if lastErr != nil {
			c.metrics.PushTotal.WithLabelValues("error").Inc()
		} else {
			c.metrics.PushTotal.WithLabelValues("success").Inc()
		}
	}

	if lastErr != nil {
		if c.errorCollector != nil {
			c.errorCollector.Report(healtherrors.HealthError{
				Code:      healtherrors.ErrPushFailed,
				Message:   fmt.Sprintf("report push failed: %v", lastErr),
				Component: "transport",
				Timestamp: time.Now().UnixMilli(),
				Err:       lastErr,
			})
		}
		return nil, lastErr
	}

	slog.Info("transport: report pushed",
		"report_id", reportID,
		"compressed_bytes", compressedBytes,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// doPush performs a single HTTP POST with streaming compression.
// Each call creates a fresh io.Pipe so it can be called multiple times for retries.
func (c *Client) doPush(ctx context.Context, r *model.HealthReport, reportID string) (*model.PushResponse, int64, error) {
	pr, pw := io.Pipe()

	cw := &countingWriter{w: pw}

	zw, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = pw.Close()
		return nil, 0, fmt.Errorf("transport: failed to create zstd encoder: %w", err)
	}

	// Goroutine: encode JSON → zstd → pipe.
	go func() {
		encodeErr := json.NewEncoder(zw).Encode(r)
		// Close zstd first to flush, then close the pipe.
		closeErr := zw.Close()
		if encodeErr != nil {
			pw.CloseWithError(fmt.Errorf("transport: JSON encode failed: %w", encodeErr))
		} else if closeErr != nil {
			pw.CloseWithError(fmt.Errorf("transport: zstd close failed: %w", closeErr))
		} else {
			_ = pw.Close()
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.PushURL, pr)
	if err != nil {
		_ = pr.Close()
		return nil, 0, fmt.Errorf("transport: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "zstd")
	req.Header.Set("User-Agent", userAgent(c.config.Version))
	req.Header.Set("X-Report-ID", reportID)
	req.Header.Set("X-Node-Name", c.config.NodeName)
	req.Header.Set("X-Overall-Status", string(r.OverallStatus))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		_ = pr.Close()
		return nil, cw.Count(), fmt.Errorf("transport: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	result, err := ParseResponse(resp)
	if err != nil {
		return nil, cw.Count(), err
	}

	return result, cw.Count(), nil
}

func userAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return "gpu-health/" + version
}

// isNonRetryableError checks if an error should not be retried.
func isNonRetryableError(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrRejected)
}

// exponentialBackoff returns 1s * 2^n.
func exponentialBackoff(n int) time.Duration {
	return time.Second << n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// countingWriter counts the compressed bytes written into the pipe. The
// count is read after the request returns, while the encoder goroutine may
// still be finishing.
type countingWriter struct {
	w     io.Writer
	count atomic.Int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count.Add(int64(n))
	return n, err
}

func (cw *countingWriter) Count() int64 {
	return cw.count.Load()
}
