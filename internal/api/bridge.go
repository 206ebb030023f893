package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterBridgeRoutes registers the bridge diagnostics routes.
func (h *Handler) RegisterBridgeRoutes(r chi.Router) {
	r.Route("/api/bridge", func(r chi.Router) {
		r.Get("/health", h.handleBridgeHealth)
		r.Get("/calls", h.handleActiveCalls)
		r.Get("/stats", h.handleBridgeStats)
	})
}

func (h *Handler) handleBridgeHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"tool_host_healthy":    h.wrapper.Healthy(r.Context()),
		"sessions":             h.mgr.SessionCount(),
		"translation_contexts": h.bridge.ContextCount(),
		"active_calls":         len(h.wrapper.ListActive()),
	})
}

func (h *Handler) handleActiveCalls(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.wrapper.ListActive())
}

func (h *Handler) handleBridgeStats(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"emit_latency_seconds": h.bridge.Metrics().LatencySamples(),
		"tool_latency_seconds": h.tools.LatencySamples(),
	})
}

func limitParam(r *http.Request, fallback int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
