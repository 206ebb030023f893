package translate

import "github.com/lexdraft/lexdraft/internal/action"

// Context is the per-session memory that makes result-to-action mapping
// context-sensitive. Exactly one context exists per active session; it is
// discarded when the session is cleaned up.
type Context struct {
	SessionID   string
	UserID      string
	Form        map[string]any
	LastActions []action.Action
}

// NewContext creates an empty context for a session.
func NewContext(sessionID, userID string) *Context {
	return &Context{
		SessionID: sessionID,
		UserID:    userID,
		Form:      make(map[string]any),
	}
}

// ApplyPatch merges a form snapshot patch into the context.
func (c *Context) ApplyPatch(patch map[string]any) {
	if c.Form == nil {
		c.Form = make(map[string]any)
	}
	for k, v := range patch {
		c.Form[k] = v
	}
}
