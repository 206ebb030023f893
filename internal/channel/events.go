package channel

import (
	"context"

	"github.com/lexdraft/lexdraft/internal/action"
)

// Event types carried on the wire, client-bound.
const (
	EventJoined     = "ui:joined"
	EventActions    = "ui:actions"
	EventToolResult = "mcp:result"
)

// Client-to-server message types.
const (
	msgJoin  = "ui:join"
	msgLeave = "ui:leave"
	msgPing  = "ui:ping"
)

// joinedEvent acknowledges a successful join.
type joinedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"`
}

// actionsEvent carries a sequenced batch of UI actions.
type actionsEvent struct {
	Type    string          `json:"type"`
	Actions []action.Action `json:"actions"`
}

// toolResultEvent carries a raw tool result, sequenced like actions but as
// a distinct event type.
type toolResultEvent struct {
	Type      string `json:"type"`
	Tool      string `json:"tool"`
	Result    any    `json:"result"`
	Timestamp int64  `json:"timestamp"`
	Sequence  uint64 `json:"sequence"`
}

// clientMessage is the envelope for messages received from the client.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
}

// Subscriber is one transport endpoint subscribed to a room. The WebSocket
// handler wraps each connection in a Subscriber; tests supply fakes.
type Subscriber interface {
	// Send delivers one serialized event. It must respect ctx so a stuck
	// peer cannot stall an emission.
	Send(ctx context.Context, data []byte) error
}
