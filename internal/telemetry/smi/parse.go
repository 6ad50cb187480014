package smi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

// errMissing marks an element that was absent from the XML.
var errMissing = errors.New("smi: value not reported")

// notAvailable reports whether nvidia-smi marked the value unsupported.
func notAvailable(s string) bool {
	switch strings.Trim(strings.TrimSpace(s), "[]") {
	case "N/A", "Not Supported", "Unknown Error", "Requested functionality has been deprecated":
		return true
	}
	return false
}

// quantity parses values like "81920 MiB", "55 C", "250.50 W" or "16x",
// dropping the unit suffix.
func quantity(field, s, unit string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%s: %w", field, errMissing)
	}
	if notAvailable(s) {
		return 0, fmt.Errorf("smi: %s: %w", field, telemetry.ErrNotSupported)
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, unit))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("smi: %s: malformed value %q: %w", field, s, err)
	}
	return v, nil
}

func integer(field, s, unit string) (int, error) {
	v, err := quantity(field, s, unit)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func count(field, s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%s: %w", field, errMissing)
	}
	if notAvailable(s) {
		return 0, fmt.Errorf("smi: %s: %w", field, telemetry.ErrNotSupported)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("smi: %s: malformed count %q: %w", field, s, err)
	}
	return v, nil
}

// sumCounts adds every reported counter. Missing fields are skipped; the
// sum fails only when none of them is reported.
func sumCounts(field string, values ...string) (uint64, error) {
	var total uint64
	var seen bool
	var lastErr error
	for _, s := range values {
		v, err := count(field, s)
		if err != nil {
			if !errors.Is(err, errMissing) {
				lastErr = err
			}
			continue
		}
		total += v
		seen = true
	}
	if seen {
		return total, nil
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, fmt.Errorf("smi: %s: %w", field, telemetry.ErrNotSupported)
}

// firstReported returns the first non-empty value.
func firstReported(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
