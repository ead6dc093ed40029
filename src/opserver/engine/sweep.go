package engine

import (
	"context"
	"time"
)

// SweepService runs the timeout and liveness sweeps on a fixed interval
// until the context is cancelled. Run it as a goroutine next to the HTTP
// server. The sweeps only ever move links forward; a sweep and a late result
// for the same link are serialized under the operation lock, and whichever
// loses observes a terminal state and no-ops.
func SweepService(ctx context.Context, m *Manager, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.SweepTimeouts(now.UTC())
			m.SweepLiveness(now.UTC())
		}
	}
}
