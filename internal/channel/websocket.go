package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// WebSocketHandler upgrades UI clients and speaks the join/leave protocol.
type WebSocketHandler struct {
	mgr           *Manager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler bound to a manager.
func NewWebSocketHandler(mgr *Manager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		mgr:           mgr,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsSubscriber adapts websocket.Conn to the Subscriber interface.
type wsSubscriber struct {
	conn *websocket.Conn
}

func (s *wsSubscriber) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "channel closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	sub := &wsSubscriber{conn: ws}
	defer h.mgr.OnDisconnect(sub)

	slog.Info("UI channel connected", "ip", r.RemoteAddr)
	h.readLoop(r.Context(), ws, sub)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sub *wsSubscriber) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Malformed channel message", "error", err)
			continue
		}

		switch msg.Type {
		case msgJoin:
			if msg.SessionID == "" {
				slog.Warn("ui:join without sessionId")
				continue
			}
			room := h.mgr.Join(msg.SessionID, msg.UserID, sub)
			ack, err := json.Marshal(joinedEvent{
				Type:      EventJoined,
				SessionID: msg.SessionID,
				Room:      room,
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				slog.Error("Failed to marshal join ack", "error", err)
				continue
			}
			if err := sub.Send(ctx, ack); err != nil {
				slog.Debug("Failed to send join ack", "error", err)
			}
		case msgLeave:
			h.mgr.Leave(msg.SessionID)
		case msgPing:
			h.mgr.Touch(msg.SessionID)
		default:
			slog.Debug("Unknown channel message type", "type", msg.Type)
		}
	}
}
