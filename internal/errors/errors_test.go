package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing timestamps.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{now: t}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func TestHealthError_Implements_Error(t *testing.T) {
	he := HealthError{
		Code:      ErrProviderInit,
		Message:   "nvml init failed",
		Component: "telemetry",
		Timestamp: time.Now().UnixMilli(),
	}

	var err error = &he
	if err.Error() != "nvml init failed" {
		t.Fatalf("expected Error() = %q, got %q", "nvml init failed", err.Error())
	}
}

func TestHealthError_Unwrap(t *testing.T) {
	cause := stderrors.New("driver not loaded")
	err := fmt.Errorf("report: %w", &HealthError{Code: ErrProviderInit, Message: "init", Err: cause})

	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the wrapped cause")
	}
	if CodeOf(err) != ErrProviderInit {
		t.Fatalf("expected code %s, got %q", ErrProviderInit, CodeOf(err))
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&HealthError{Code: ErrProviderInit}, true},
		{&HealthError{Code: ErrDeviceDiscovery}, true},
		{&HealthError{Code: ErrReportWrite}, true},
		{&HealthError{Code: ErrMetricUnavailable}, false},
		{&HealthError{Code: ErrPushFailed}, false},
		{stderrors.New("plain"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsFatal(tc.err); got != tc.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestCollector_Report(t *testing.T) {
	clk := newMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewCollector(clk)

	c.Report(HealthError{
		Code:      ErrMetricUnavailable,
		Message:   "ecc not supported",
		Component: "gpu0.ecc_errors",
	})

	errs := c.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Code != ErrMetricUnavailable {
		t.Fatalf("expected code %s, got %s", ErrMetricUnavailable, errs[0].Code)
	}
	if errs[0].Timestamp != clk.Now().UnixMilli() {
		t.Fatalf("expected timestamp filled from clock, got %d", errs[0].Timestamp)
	}
}

func TestCollector_DedupByCodeAndComponent(t *testing.T) {
	c := NewCollector(RealClock{})

	c.Report(HealthError{Code: ErrMetricUnavailable, Message: "first", Component: "gpu1.temperature"})
	c.Report(HealthError{Code: ErrMetricUnavailable, Message: "second", Component: "gpu1.temperature"})
	c.Report(HealthError{Code: ErrMetricUnavailable, Message: "other", Component: "gpu0.temperature"})

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs[0].Component != "gpu0.temperature" || errs[1].Message != "second" {
		t.Fatalf("unexpected ordering or content: %+v", errs)
	}
}

func TestCollector_ThreadSafe(t *testing.T) {
	c := NewCollector(RealClock{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c.Report(HealthError{
				Code:      Code(fmt.Sprintf("ERR_%d", idx%5)),
				Message:   fmt.Sprintf("error %d", idx),
				Component: fmt.Sprintf("gpu%d", idx%3),
			})
			_ = c.Errors()
			_ = c.Codes()
		}(i)
	}
	wg.Wait()

	if c.Len() != 15 {
		t.Fatalf("expected 15 distinct errors, got %d", c.Len())
	}
}

func TestCollector_Codes(t *testing.T) {
	c := NewCollector(RealClock{})

	c.Report(HealthError{Code: ErrMetricUnavailable, Component: "gpu0.power_draw"})
	c.Report(HealthError{Code: ErrMetricUnavailable, Component: "gpu0.power_limit"})
	c.Report(HealthError{Code: ErrPushFailed, Component: "transport"})

	codes := c.Codes()
	if len(codes) != 2 {
		t.Fatalf("expected 2 unique codes, got %d: %v", len(codes), codes)
	}
	if codes[0] != string(ErrMetricUnavailable) || codes[1] != string(ErrPushFailed) {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestCollector_Clear(t *testing.T) {
	c := NewCollector(RealClock{})

	c.Report(HealthError{Code: ErrMetricUnavailable, Component: "gpu0.pcie"})
	c.Clear()

	if c.Len() != 0 {
		t.Fatal("expected 0 errors after Clear()")
	}
	if len(c.Codes()) != 0 {
		t.Fatal("expected 0 codes after Clear()")
	}
}
