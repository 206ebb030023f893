package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lexdraft/lexdraft/internal/agentbind"
)

// maxRunRequestBody caps the run request body size (1 MB).
const maxRunRequestBody = 1 << 20

// AgentHandler serves agent run requests and run history.
type AgentHandler struct {
	base *Handler
	reg  *agentbind.Registry
}

// NewAgentHandler creates an agent handler over the binding registry.
func NewAgentHandler(base *Handler, reg *agentbind.Registry) *AgentHandler {
	return &AgentHandler{base: base, reg: reg}
}

// RegisterRoutes registers the agent routes.
func (h *AgentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/run", h.handleRun)
		r.Get("/runs", h.handleRuns)
	})
}

type runRequest struct {
	AgentID   string         `json:"agentId"`
	Message   string         `json:"message"`
	SessionID string         `json:"sessionId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

func (h *AgentHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunRequestBody)

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" || req.Message == "" {
		Error(w, http.StatusBadRequest, "agentId and message are required")
		return
	}

	slog.Info("Agent run request",
		"agent_id", req.AgentID,
		"session_id", req.SessionID,
		"message_length", len(req.Message),
	)

	res, err := h.reg.Run(r.Context(), req.AgentID, req.Message, req.SessionID, req.UserID, req.Context)
	if err != nil {
		slog.Error("Agent run failed", "agent_id", req.AgentID, "error", err)
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *AgentHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if h.base.repo == nil {
		Error(w, http.StatusNotFound, "run history disabled")
		return
	}
	runs, err := h.base.repo.ListRuns(r.Context(), limitParam(r, 50))
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	JSON(w, http.StatusOK, runs)
}
