package errors

import (
	stderrors "errors"
	"sort"
	"sync"
	"time"
)

// Code represents a typed error code carried through a health run.
type Code string

// Health run error codes.
const (
	ErrProviderInit      Code = "PROVIDER_INIT_FAILED"
	ErrDeviceDiscovery   Code = "DEVICE_DISCOVERY_FAILED"
	ErrMetricUnavailable Code = "METRIC_UNAVAILABLE"
	ErrReportWrite       Code = "REPORT_WRITE_FAILED"
	ErrPushFailed        Code = "PUSH_FAILED"
	ErrMetricsWrite      Code = "METRICS_WRITE_FAILED"
)

// fatalCodes abort the run before (or instead of) a usable report.
var fatalCodes = map[Code]bool{
	ErrProviderInit:    true,
	ErrDeviceDiscovery: true,
	ErrReportWrite:     true,
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// HealthError represents a typed error with code, component, and optional wrapped error.
type HealthError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *HealthError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *HealthError) Unwrap() error {
	return e.Err
}

// CodeOf returns the Code of the first HealthError in err's chain, or "".
func CodeOf(err error) Code {
	var he *HealthError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsFatal reports whether err carries a code that prevents a report from
// being produced or persisted.
func IsFatal(err error) bool {
	return fatalCodes[CodeOf(err)]
}

// Collector is a thread-safe, run-scoped store of degraded-path errors.
// Errors are keyed by Code+Component; re-reporting replaces the entry.
type Collector struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]HealthError // key = string(Code) + "|" + Component
}

// NewCollector creates a Collector with the given clock.
func NewCollector(clock Clock) *Collector {
	return &Collector{
		clock:   clock,
		entries: make(map[string]HealthError),
	}
}

// key builds the dedup key for an error.
func key(code Code, component string) string {
	return string(code) + "|" + component
}

// Report stores or replaces an error. A zero Timestamp is filled from the clock.
func (c *Collector) Report(err HealthError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err.Timestamp == 0 {
		err.Timestamp = c.clock.Now().UnixMilli()
	}
	c.entries[key(err.Code, err.Component)] = err
}

// Errors returns every recorded error ordered by component, then code.
func (c *Collector) Errors() []HealthError {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]HealthError, 0, len(c.entries))
	for _, e := range c.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Component != result[j].Component {
			return result[i].Component < result[j].Component
		}
		return result[i].Code < result[j].Code
	})
	return result
}

// Codes returns a deduplicated, sorted list of recorded error codes.
func (c *Collector) Codes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[Code]struct{})
	codes := make([]string, 0)
	for _, e := range c.entries {
		if _, ok := seen[e.Code]; !ok {
			seen[e.Code] = struct{}{}
			codes = append(codes, string(e.Code))
		}
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all tracked errors.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]HealthError)
}
