// Package api provides HTTP handlers for the LexDraft bridge API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/lexdraft/lexdraft/internal/bridge"
	"github.com/lexdraft/lexdraft/internal/channel"
	"github.com/lexdraft/lexdraft/internal/store"
	"github.com/lexdraft/lexdraft/internal/toolcall"
)

// Handler provides common handler utilities and shared dependencies.
type Handler struct {
	mgr     *channel.Manager
	bridge  *bridge.Bridge
	wrapper *toolcall.Wrapper
	tools   *toolcall.Metrics
	repo    store.Repository
}

// NewHandler creates a new Handler with common dependencies. repo may be
// nil when run history is disabled.
func NewHandler(mgr *channel.Manager, b *bridge.Bridge, wrapper *toolcall.Wrapper, tools *toolcall.Metrics, repo store.Repository) *Handler {
	return &Handler{
		mgr:     mgr,
		bridge:  b,
		wrapper: wrapper,
		tools:   tools,
		repo:    repo,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
