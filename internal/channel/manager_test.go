package channel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/lexdraft/lexdraft/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	mu     sync.Mutex
	events [][]byte
}

func (s *fakeSub) Send(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, append([]byte(nil), data...))
	return nil
}

func (s *fakeSub) decoded(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.events))
	for _, raw := range s.events {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func batch(n int) []action.Action {
	actions := make([]action.Action, n)
	for i := range actions {
		actions[i] = action.SetField("title", i)
	}
	return actions
}

func TestManager_JoinReturnsDeterministicRoom(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}

	room := mgr.Join("s1", "u1", sub)
	require.Equal(t, "ui:s1", room)
	require.True(t, mgr.Has("s1"))
	require.Equal(t, 1, mgr.SessionCount())
}

func TestManager_RejoinResetsSequence(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}

	mgr.Join("s1", "u1", sub)
	require.True(t, mgr.Emit("s1", batch(2)))

	// Re-join resets the record; sequencing starts over.
	mgr.Join("s1", "u1", sub)
	require.True(t, mgr.Emit("s1", batch(1)))

	events := sub.decoded(t)
	last := events[len(events)-1]
	actions := last["actions"].([]any)
	first := actions[0].(map[string]any)
	assert.Equal(t, float64(1), first["sequence"])
}

func TestManager_EmitSequencesInArrayOrder(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}
	mgr.Join("s2", "", sub)

	require.True(t, mgr.Emit("s2", batch(3)))

	events := sub.decoded(t)
	require.Len(t, events, 1)
	require.Equal(t, EventActions, events[0]["type"])

	actions := events[0]["actions"].([]any)
	require.Len(t, actions, 3)
	for i, raw := range actions {
		a := raw.(map[string]any)
		assert.Equal(t, float64(i+1), a["sequence"])
		assert.Greater(t, a["timestamp"].(float64), float64(0))
	}
}

func TestManager_SequenceContiguousAcrossEventTypes(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}
	mgr.Join("s1", "", sub)

	require.True(t, mgr.Emit("s1", batch(2)))
	require.True(t, mgr.EmitToolResult("s1", "render_pdf", map[string]any{"url": "/out.pdf"}))
	require.True(t, mgr.Emit("s1", batch(1)))

	events := sub.decoded(t)
	require.Len(t, events, 3)

	toolEvent := events[1]
	require.Equal(t, EventToolResult, toolEvent["type"])
	assert.Equal(t, "render_pdf", toolEvent["tool"])
	assert.Equal(t, float64(3), toolEvent["sequence"])

	lastBatch := events[2]["actions"].([]any)
	assert.Equal(t, float64(4), lastBatch[0].(map[string]any)["sequence"])
}

func TestManager_EmitUnknownSessionIsNoop(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}
	mgr.Join("s1", "", sub)

	require.False(t, mgr.Emit("ghost", batch(1)))
	require.False(t, mgr.EmitToolResult("ghost", "render_pdf", nil))
	assert.Empty(t, sub.events)
}

func TestManager_LeaveForgetsSession(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}
	mgr.Join("s1", "", sub)

	mgr.Leave("s1")
	require.False(t, mgr.Has("s1"))
	require.False(t, mgr.Emit("s1", batch(1)))

	// Leaving twice is harmless.
	mgr.Leave("s1")
}

func TestManager_OnDisconnectLeavesAllOwnedSessions(t *testing.T) {
	mgr := NewManager()
	sub := &fakeSub{}
	other := &fakeSub{}

	mgr.Join("s1", "", sub)
	mgr.Join("s2", "", sub)
	mgr.Join("s3", "", other)

	mgr.OnDisconnect(sub)

	assert.False(t, mgr.Has("s1"))
	assert.False(t, mgr.Has("s2"))
	assert.True(t, mgr.Has("s3"))
}

func TestManager_TouchRefreshesActivity(t *testing.T) {
	mgr := NewManager()
	mgr.Join("s1", "", &fakeSub{})

	before := mgr.Snapshot("s1").LastActivity
	mgr.Touch("s1")
	after := mgr.Snapshot("s1").LastActivity
	assert.False(t, after.Before(before))
}
