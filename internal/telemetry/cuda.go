package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCUDAVersion decodes a driver CUDA version (major*1000 + minor*10)
// into "major.minor", e.g. 12020 -> "12.2".
func FormatCUDAVersion(v int) string {
	major := v / 1000
	minor := (v % 1000) / 10
	return fmt.Sprintf("%d.%d", major, minor)
}

// EncodeCUDAVersion is the inverse of FormatCUDAVersion for providers that
// only report the dotted form.
func EncodeCUDAVersion(s string) (int, error) {
	majorStr, minorStr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return 0, fmt.Errorf("telemetry: malformed CUDA version %q", s)
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return 0, fmt.Errorf("telemetry: malformed CUDA major version %q: %w", s, err)
	}
	// Patch components ("12.2.1") are not part of the driver encoding.
	minorStr, _, _ = strings.Cut(minorStr, ".")
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return 0, fmt.Errorf("telemetry: malformed CUDA minor version %q: %w", s, err)
	}
	return major*1000 + minor*10, nil
}
