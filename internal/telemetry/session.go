package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Acquire initializes p and returns a release func that shuts it down exactly
// once, no matter how many times it is called. On Init failure the provider
// is not shut down and release is nil.
func Acquire(ctx context.Context, p Provider) (release func(), err error) {
	if err := p.Init(ctx); err != nil {
		return nil, fmt.Errorf("telemetry: %s init: %w", p.Name(), err)
	}
	slog.Debug("telemetry: provider initialized", "provider", p.Name())

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := p.Shutdown(); err != nil {
				slog.Warn("telemetry: provider shutdown failed", "provider", p.Name(), "error", err)
				return
			}
			slog.Debug("telemetry: provider shut down", "provider", p.Name())
		})
	}, nil
}
