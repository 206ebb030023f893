package agentbind

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the idle sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// StartSweepWorker runs a background goroutine that periodically expires
// idle sessions. It stops when ctx is cancelled.
func StartSweepWorker(ctx context.Context, reg *Registry, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("session sweep worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				if removed := reg.CleanupExpiredSessions(); removed > 0 {
					slog.Info("session sweep completed", "removed", removed)
				}
			case <-ctx.Done():
				slog.Info("session sweep worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
