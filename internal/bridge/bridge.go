// Package bridge validates, sequences, and emits UI actions on behalf of
// tool invocations and agent runs. It enforces the closed action
// vocabulary and the payload-size ceiling, and owns the per-session
// translation contexts.
package bridge

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lexdraft/lexdraft/internal/action"
	"github.com/lexdraft/lexdraft/internal/channel"
	"github.com/lexdraft/lexdraft/internal/translate"
)

// DefaultMaxPayloadSize is the serialized-payload ceiling (1 MiB).
const DefaultMaxPayloadSize = 1 << 20

// Options configures a Bridge.
type Options struct {
	// Enabled gates all emission; when false every call is a no-op
	// returning false.
	Enabled bool
	// MaxPayloadSize is the serialized size ceiling in bytes; zero means
	// DefaultMaxPayloadSize.
	MaxPayloadSize int
}

// Bridge sits above the channel manager and below the tool wrapper and
// agent binding.
type Bridge struct {
	mgr        *channel.Manager
	translator *translate.Translator
	metrics    *Metrics
	enabled    bool
	maxPayload int

	mu       sync.Mutex
	contexts map[string]*translate.Context
}

// New creates a bridge over the given channel manager and translator.
func New(mgr *channel.Manager, translator *translate.Translator, metrics *Metrics, opts Options) *Bridge {
	maxPayload := opts.MaxPayloadSize
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadSize
	}
	return &Bridge{
		mgr:        mgr,
		translator: translator,
		metrics:    metrics,
		enabled:    opts.Enabled,
		maxPayload: maxPayload,
		contexts:   make(map[string]*translate.Context),
	}
}

// EmitToolResult forwards a raw tool result to the session's room as an
// mcp:result event. Oversized results are dropped whole.
func (b *Bridge) EmitToolResult(sessionID, tool string, result any) bool {
	if !b.enabled {
		return false
	}

	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("tool result not serializable", "tool", tool, "error", err)
		b.metrics.ResultDropped("unserializable")
		return false
	}
	if len(data) > b.maxPayload {
		slog.Warn("tool result exceeds payload ceiling",
			"tool", tool, "size", len(data), "limit", b.maxPayload)
		b.metrics.ResultDropped("oversize")
		return false
	}

	start := time.Now()
	ok := b.mgr.EmitToolResult(sessionID, tool, result)
	b.metrics.EmitLatency(tool, time.Since(start))
	return ok
}

// EmitActions validates the batch, drops invalid entries individually, and
// delivers the valid subset. The whole call is rejected when the valid
// subset is empty or its serialized form exceeds the ceiling.
func (b *Bridge) EmitActions(sessionID string, actions []action.Action) bool {
	if !b.enabled {
		return false
	}

	valid := make([]action.Action, 0, len(actions))
	for _, a := range actions {
		if err := action.Validate(a); err != nil {
			slog.Warn("dropping invalid action", "session_id", sessionID, "error", err)
			b.metrics.ActionDropped("invalid")
			continue
		}
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return false
	}

	data, err := json.Marshal(valid)
	if err != nil {
		slog.Warn("action batch not serializable", "session_id", sessionID, "error", err)
		b.metrics.ActionDropped("unserializable")
		return false
	}
	if len(data) > b.maxPayload {
		slog.Warn("action batch exceeds payload ceiling",
			"session_id", sessionID, "size", len(data), "limit", b.maxPayload)
		b.metrics.ActionDropped("oversize")
		return false
	}

	if !b.mgr.Emit(sessionID, valid) {
		return false
	}
	for _, a := range valid {
		b.metrics.ActionEmitted(string(a.Type))
	}
	return true
}

// TranslateAndEmit fetches or creates the session's translation context,
// applies the optional patch, translates the tool result into actions, and
// emits them. The patch, translation, and last-actions update happen under
// the context lock so concurrent translations for one session (the tool
// wrapper's forward path racing an agent run) cannot corrupt the form
// snapshot.
func (b *Bridge) TranslateAndEmit(sessionID string, res translate.ToolResult, patch map[string]any) bool {
	if !b.enabled {
		return false
	}

	b.mu.Lock()
	tctx := b.contextForLocked(sessionID)
	if len(patch) > 0 {
		tctx.ApplyPatch(patch)
	}
	actions := b.translator.Translate(res, tctx)
	tctx.LastActions = actions
	b.mu.Unlock()

	if len(actions) == 0 {
		return false
	}
	return b.EmitActions(sessionID, actions)
}

// DropSession discards the session's translation context and removes the
// session from the channel. Used by the idle sweep.
func (b *Bridge) DropSession(sessionID string) {
	b.mu.Lock()
	delete(b.contexts, sessionID)
	b.mu.Unlock()
	b.mgr.Leave(sessionID)
}

// ContextCount returns the number of live translation contexts.
func (b *Bridge) ContextCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts)
}

// Metrics exposes the bridge metrics for the diagnostics API.
func (b *Bridge) Metrics() *Metrics {
	return b.metrics
}

func (b *Bridge) contextForLocked(sessionID string) *translate.Context {
	if tctx, ok := b.contexts[sessionID]; ok {
		return tctx
	}
	userID := ""
	if sess := b.mgr.Snapshot(sessionID); sess != nil {
		userID = sess.UserID
	}
	tctx := translate.NewContext(sessionID, userID)
	b.contexts[sessionID] = tctx
	return tctx
}
