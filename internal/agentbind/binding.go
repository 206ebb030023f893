// Package agentbind ties agent instances to UI sessions: it runs agent
// turns, surfaces lifecycle notifications through the bridge, derives UI
// actions from embedded tool calls, and sweeps idle sessions.
package agentbind

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lexdraft/lexdraft/internal/action"
	"github.com/lexdraft/lexdraft/internal/bridge"
	"github.com/lexdraft/lexdraft/internal/domain"
	"github.com/lexdraft/lexdraft/internal/store"
	"github.com/lexdraft/lexdraft/internal/toolcall"
	"github.com/lexdraft/lexdraft/internal/translate"
)

// openPanelTextThreshold is the free-text length above which a run result
// is surfaced in a panel instead of only a toast.
const openPanelTextThreshold = 200

// DefaultSessionTimeout is the idle expiry threshold (30 minutes).
const DefaultSessionTimeout = 30 * time.Minute

// Agent is the external agent runtime for one bound agent.
type Agent interface {
	Run(ctx context.Context, message string) (*Result, error)
}

// ToolCall is one tool invocation embedded in an agent result.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Result map[string]any `json:"result"`
}

// Result is an agent's free-form run outcome.
type Result struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

type sessionInfo struct {
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
}

type binding struct {
	agentID  string
	agent    Agent
	wrapper  *toolcall.Wrapper
	bridge   *bridge.Bridge
	sessions map[string]*sessionInfo
}

// Options configures a Registry.
type Options struct {
	// SessionTimeout is the idle expiry threshold. Zero expires any
	// session idle longer than zero; negative means
	// DefaultSessionTimeout.
	SessionTimeout time.Duration
	// Repo, when set, receives a run record after every agent run.
	Repo store.Repository
}

// Registry owns the (agent, session) bindings and their lifecycle.
type Registry struct {
	mu             sync.Mutex
	bindings       map[string]*binding
	sessionTimeout time.Duration
	repo           store.Repository
}

// NewRegistry creates an empty binding registry.
func NewRegistry(opts Options) *Registry {
	timeout := opts.SessionTimeout
	if timeout < 0 {
		timeout = DefaultSessionTimeout
	}
	return &Registry{
		bindings:       make(map[string]*binding),
		sessionTimeout: timeout,
		repo:           opts.Repo,
	}
}

// Bind registers an agent with its tool wrapper and bridge. Re-binding an
// id replaces the previous tuple and discards its session map.
func (r *Registry) Bind(agentID string, agent Agent, wrapper *toolcall.Wrapper, b *bridge.Bridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[agentID] = &binding{
		agentID:  agentID,
		agent:    agent,
		wrapper:  wrapper,
		bridge:   b,
		sessions: make(map[string]*sessionInfo),
	}
	slog.Info("agent bound", "agent_id", agentID)
}

// Wrapper returns the tool wrapper bound to an agent, or nil.
func (r *Registry) Wrapper(agentID string) *toolcall.Wrapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[agentID]; ok {
		return b.wrapper
	}
	return nil
}

// Run executes one agent turn for a session. UI notifications are
// best-effort and never turn a successful run into a failure; agent
// errors are rethrown to the caller after an error toast.
func (r *Registry) Run(ctx context.Context, agentID, message, sessionID, userID string, patch map[string]any) (*Result, error) {
	b := r.lookup(agentID)
	if b == nil {
		return nil, fmt.Errorf("agent %q not bound", agentID)
	}

	if sessionID != "" {
		r.touchSession(b, sessionID, userID)
	}

	r.notify(b, sessionID, fmt.Sprintf("Agent %s started", agentID), "info")

	started := time.Now()
	res, err := b.agent.Run(ctx, message)
	if err != nil {
		r.notify(b, sessionID, fmt.Sprintf("Agent %s failed: %s", agentID, err), "error")
		if sessionID != "" {
			r.touchSession(b, sessionID, userID)
		}
		r.recordRun(agentID, sessionID, userID, started, 0, err)
		return nil, err
	}

	// Re-derive UI actions from tool calls the agent performed outside the
	// wrapper's direct path.
	if sessionID != "" {
		for _, tc := range res.ToolCalls {
			b.bridge.EmitToolResult(sessionID, tc.Tool, tc.Result)
			b.bridge.TranslateAndEmit(sessionID, translate.ToolResult{
				Tool:    tc.Tool,
				Success: true,
				Result:  tc.Result,
			}, patch)
		}
		if utf8.RuneCountInString(res.Text) > openPanelTextThreshold {
			if !b.bridge.EmitActions(sessionID, []action.Action{
				action.OpenPanel("agent_output", res.Text),
			}) {
				slog.Debug("agent output panel not delivered", "session_id", sessionID)
			}
		}
	}

	r.notify(b, sessionID, fmt.Sprintf("Agent %s completed", agentID), "success")

	if sessionID != "" {
		r.touchSession(b, sessionID, userID)
	}
	r.recordRun(agentID, sessionID, userID, started, len(res.ToolCalls), nil)
	return res, nil
}

// CleanupExpiredSessions removes every session idle longer than the
// timeout, dropping its translation context and channel membership.
// Returns the number of sessions removed.
func (r *Registry) CleanupExpiredSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, b := range r.bindings {
		for sessionID, info := range b.sessions {
			if now.Sub(info.LastActivity) <= r.sessionTimeout {
				continue
			}
			delete(b.sessions, sessionID)
			b.bridge.DropSession(sessionID)
			removed++
			slog.Info("expired idle session",
				"agent_id", b.agentID, "session_id", sessionID,
				"idle", now.Sub(info.LastActivity))
		}
	}
	return removed
}

// Remove cleans up all sessions for an agent and deletes the binding.
func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[agentID]
	if !ok {
		return
	}
	for sessionID := range b.sessions {
		b.bridge.DropSession(sessionID)
	}
	delete(r.bindings, agentID)
	slog.Info("agent unbound", "agent_id", agentID)
}

// SessionCount returns the total number of bound sessions across agents.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bindings {
		n += len(b.sessions)
	}
	return n
}

func (r *Registry) lookup(agentID string) *binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings[agentID]
}

func (r *Registry) touchSession(b *binding, sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if info, ok := b.sessions[sessionID]; ok {
		info.LastActivity = now
		return
	}
	b.sessions[sessionID] = &sessionInfo{
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// notify sends a lifecycle toast. Failures are logged, never propagated;
// the underlying channel write is already bounded by the channel
// manager's per-subscriber write timeout.
func (r *Registry) notify(b *binding, sessionID, message, toastType string) {
	if sessionID == "" {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("UI notification panicked", "session_id", sessionID, "panic", rec)
		}
	}()
	if !b.bridge.EmitActions(sessionID, lifecycleToast(message, toastType)) {
		slog.Debug("UI notification not delivered", "session_id", sessionID, "message", message)
	}
}

func lifecycleToast(message, toastType string) []action.Action {
	return []action.Action{action.ShowToast(message, action.ToastType(toastType))}
}

func (r *Registry) recordRun(agentID, sessionID, userID string, started time.Time, toolCalls int, runErr error) {
	if r.repo == nil {
		return
	}
	rec := &domain.RunRecord{
		AgentID:   agentID,
		SessionID: sessionID,
		UserID:    userID,
		Success:   runErr == nil,
		ToolCalls: toolCalls,
		Duration:  time.Since(started).Milliseconds(),
		CreatedAt: time.Now(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.repo.SaveRun(ctx, rec); err != nil {
		slog.Warn("failed to record agent run", "agent_id", agentID, "error", err)
	}
}
