// Package toolcall wraps calls into the external tool host with retry,
// call-record bookkeeping, and latency metrics. Outcomes are pushed
// through the bridge so the UI sees raw results and translated actions.
package toolcall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexdraft/lexdraft/internal/bridge"
	"github.com/lexdraft/lexdraft/internal/translate"
)

// ErrToolNotFound marks an invocation of a tool the host does not expose.
// It is fatal for the invocation and never retried.
var ErrToolNotFound = errors.New("tool not found")

// Host is the external tool host. Call runs one tool by name; Probe is a
// lightweight health check.
type Host interface {
	Call(ctx context.Context, tool string, params map[string]any) (map[string]any, error)
	Probe(ctx context.Context) error
}

// CallRecord is the bookkeeping entry for one in-flight or retrying
// invocation. It exists from invocation start until terminal success,
// terminal failure, or cancellation.
type CallRecord struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	SessionID string         `json:"sessionId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	Retries   int            `json:"retries"`
}

// Options configures the retry policy.
type Options struct {
	// MaxRetries caps retries after the first attempt; zero means
	// DefaultMaxRetries.
	MaxRetries int
	// RetryDelay is the backoff base; zero means DefaultRetryDelay.
	RetryDelay time.Duration
}

// Retry policy defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Wrapper invokes tools on the host with exponential backoff.
type Wrapper struct {
	host       Host
	bridge     *bridge.Bridge
	metrics    *Metrics
	maxRetries int
	retryDelay time.Duration

	mu     sync.Mutex
	active map[string]*CallRecord

	// sleep is the backoff timer, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a wrapper over the given host. The bridge may be nil when no
// UI forwarding is wanted.
func New(host Host, b *bridge.Bridge, metrics *Metrics, opts Options) *Wrapper {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Wrapper{
		host:       host,
		bridge:     b,
		metrics:    metrics,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		active:     make(map[string]*CallRecord),
		sleep:      sleepCtx,
	}
}

// Invoke runs a tool with retry. On success the result is forwarded to the
// bridge (raw result plus translated actions) when a session is attached.
// On exhaustion the error outcome is forwarded the same way and the
// underlying error is returned to the caller.
func (w *Wrapper) Invoke(ctx context.Context, tool string, params map[string]any, sessionID, userID string) (map[string]any, error) {
	rec := &CallRecord{
		ID:        uuid.NewString(),
		Tool:      tool,
		Params:    params,
		SessionID: sessionID,
		UserID:    userID,
		StartedAt: time.Now(),
	}
	w.mu.Lock()
	w.active[rec.ID] = rec
	w.mu.Unlock()

	for {
		start := time.Now()
		result, err := w.host.Call(ctx, tool, params)
		if err == nil {
			w.metrics.Succeeded(tool, time.Since(start))
			w.forget(rec.ID)
			if w.bridge != nil && sessionID != "" {
				w.bridge.EmitToolResult(sessionID, tool, result)
				w.forward(sessionID, translate.ToolResult{Tool: tool, Success: true, Result: result})
			}
			return result, nil
		}

		w.metrics.Failed(tool)

		if errors.Is(err, ErrToolNotFound) {
			w.forget(rec.ID)
			w.forwardError(sessionID, tool, err)
			return nil, err
		}
		retries, active := w.snapshotRetries(rec)
		if !active {
			// Cancelled between attempts; no further retries.
			slog.Info("tool call cancelled, not retrying", "tool", tool, "call_id", rec.ID)
			return nil, err
		}
		if retries >= w.maxRetries {
			w.forget(rec.ID)
			w.forwardError(sessionID, tool, err)
			return nil, fmt.Errorf("tool %s failed after %d attempts: %w", tool, retries+1, err)
		}

		attempt := w.bumpRetries(rec)
		w.metrics.Retried(tool)
		delay := w.retryDelay * (1 << (attempt - 1))
		slog.Warn("tool call failed, retrying",
			"tool", tool, "call_id", rec.ID, "attempt", attempt, "delay", delay, "error", err)
		if sleepErr := w.sleep(ctx, delay); sleepErr != nil {
			w.forget(rec.ID)
			return nil, sleepErr
		}
	}
}

// Cancel forgets the call record if present. It does not abort a network
// call already dispatched; it only guarantees no further retries.
func (w *Wrapper) Cancel(callID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.active[callID]; !ok {
		return false
	}
	delete(w.active, callID)
	slog.Info("tool call cancelled", "call_id", callID)
	return true
}

// ListActive returns a snapshot of in-flight and retrying calls.
func (w *Wrapper) ListActive() []CallRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]CallRecord, 0, len(w.active))
	for _, rec := range w.active {
		out = append(out, *rec)
	}
	return out
}

// Healthy probes the tool host. It never propagates an error.
func (w *Wrapper) Healthy(ctx context.Context) bool {
	if err := w.host.Probe(ctx); err != nil {
		slog.Warn("tool host probe failed", "error", err)
		return false
	}
	return true
}

func (w *Wrapper) forward(sessionID string, res translate.ToolResult) {
	if w.bridge == nil || sessionID == "" {
		return
	}
	w.bridge.TranslateAndEmit(sessionID, res, nil)
}

func (w *Wrapper) forwardError(sessionID, tool string, err error) {
	w.forward(sessionID, translate.ToolResult{Tool: tool, Success: false, Error: err.Error()})
}

func (w *Wrapper) forget(callID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, callID)
}

// snapshotRetries reads the retry counter and liveness of a record under
// the lock; ListActive copies the same record concurrently.
func (w *Wrapper) snapshotRetries(rec *CallRecord) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[rec.ID]
	return rec.Retries, ok
}

func (w *Wrapper) bumpRetries(rec *CallRecord) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec.Retries++
	return rec.Retries
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
