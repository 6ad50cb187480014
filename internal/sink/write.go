package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	healtherrors "github.com/kubeadapt/gpu-health/internal/errors"
)

// CompressedSuffix selects zstd compression for the written report.
const CompressedSuffix = ".zst"

// Write stores data at path and returns the number of bytes on disk. The
// parent directory is created when missing. Data is written to a temporary
// file in the same directory and renamed into place, so readers never see a
// partial report. Paths ending in ".zst" are zstd-compressed.
//
// Failures are returned as a fatal *errors.HealthError.
func Write(path string, data []byte) (int64, error) {
	n, err := write(path, data)
	if err != nil {
		return 0, &healtherrors.HealthError{
			Code:      healtherrors.ErrReportWrite,
			Message:   fmt.Sprintf("sink: write report to %s: %v", path, err),
			Component: "sink",
			Err:       err,
		}
	}
	slog.Debug("sink: report written", "path", path, "bytes", n, "raw_bytes", len(data))
	return n, nil
}

func write(path string, data []byte) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := writePayload(tmp, path, data); err != nil {
		return 0, err
	}

	info, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	committed = true
	return info.Size(), nil
}

func writePayload(w io.Writer, path string, data []byte) error {
	if !strings.HasSuffix(path, CompressedSuffix) {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("zstd write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return nil
}
