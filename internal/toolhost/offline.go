package toolhost

import (
	"context"
	"fmt"

	"github.com/lexdraft/lexdraft/internal/toolcall"
)

// offlineHost is used when no tool host address is configured. Every call
// fails fast without retries.
type offlineHost struct{}

// Offline returns a Host for deployments without a tool host.
func Offline() toolcall.Host {
	return offlineHost{}
}

func (offlineHost) Call(_ context.Context, tool string, _ map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("tool host not configured, tool %q: %w", tool, toolcall.ErrToolNotFound)
}

func (offlineHost) Probe(context.Context) error {
	return fmt.Errorf("tool host not configured")
}
