package sink

import (
	"fmt"
	"io"

	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Process exit codes.
const (
	ExitHealthy = 0 // pass or warn
	ExitFailed  = 1 // at least one check failed
	ExitFatal   = 2 // no usable report
)

// Echo writes the encoded report to w. Binary formats are not echoed.
func Echo(w io.Writer, data []byte, format Format) error {
	if !format.IsText() {
		_, err := fmt.Fprintf(w, "(%s report, %d bytes, not echoed)\n", format, len(data))
		return err
	}
	_, err := w.Write(data)
	return err
}

// Summary writes the human-readable run summary to w.
func Summary(w io.Writer, r *model.HealthReport, location string) error {
	_, err := fmt.Fprintf(w, "\nGPU Health Check Complete\nStatus: %s\nGPUs: %d\nReport saved to: %s\n",
		r.OverallStatus, r.GPUCount, location)
	return err
}

// ExitCode maps the outcome of a run to the process exit code. Any error
// means no usable report was produced or persisted.
func ExitCode(r *model.HealthReport, err error) int {
	if err != nil || r == nil {
		return ExitFatal
	}
	if r.OverallStatus == model.StatusFail {
		return ExitFailed
	}
	return ExitHealthy
}

