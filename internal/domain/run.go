// Package domain holds the core data types shared across packages.
package domain

import "time"

// RunRecord is the audit entry for one agent run.
type RunRecord struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	ToolCalls int       `json:"tool_calls"`
	Duration  int64     `json:"duration_ms"`
	CreatedAt time.Time `json:"created_at"`
}
