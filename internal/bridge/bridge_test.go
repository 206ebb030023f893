package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexdraft/lexdraft/internal/action"
	"github.com/lexdraft/lexdraft/internal/channel"
	"github.com/lexdraft/lexdraft/internal/translate"
	"github.com/prometheus/client_golang/prometheus"
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

func (s *fakeSub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// actionsIn decodes the ui:actions event at index i.
func (s *fakeSub) actionsIn(t *testing.T, i int) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var event struct {
		Type    string           `json:"type"`
		Actions []map[string]any `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(s.events[i], &event))
	require.Equal(t, channel.EventActions, event.Type)
	return event.Actions
}

func newTestBridge(t *testing.T, opts Options) (*Bridge, *channel.Manager, *fakeSub) {
	t.Helper()
	mgr := channel.NewManager()
	sub := &fakeSub{}
	mgr.Join("s1", "u1", sub)

	metrics := NewMetrics(prometheus.NewRegistry(), true)
	return New(mgr, translate.NewTranslator(), metrics, opts), mgr, sub
}

func TestEmitActions_DropsInvalidIndividually(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true})

	bad := action.Action{
		Type:      action.KindShowToast,
		Payload:   map[string]any{"message": "hi", "type": "bogus"},
		Timestamp: time.Now().UnixMilli(),
	}
	good := action.SetField("title", "ok")

	require.True(t, b.EmitActions("s1", []action.Action{good, bad}))

	actions := sub.actionsIn(t, 0)
	require.Len(t, actions, 1)
	assert.Equal(t, string(action.KindSetField), actions[0]["type"])

	// Re-running the identical batch behaves the same.
	require.True(t, b.EmitActions("s1", []action.Action{good, bad}))
	assert.Len(t, sub.actionsIn(t, 1), 1)
}

func TestEmitActions_AllInvalidRejectsCall(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true})

	bad := action.Action{Type: action.Kind("nope"), Payload: map[string]any{}, Timestamp: 1}
	require.False(t, b.EmitActions("s1", []action.Action{bad}))
	assert.Zero(t, sub.count())
}

func TestEmitActions_SizeCeiling(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true, MaxPayloadSize: 512})

	over := action.SetField("body", strings.Repeat("x", 600))
	require.False(t, b.EmitActions("s1", []action.Action{over}))
	assert.Zero(t, sub.count())

	under := action.SetField("body", strings.Repeat("x", 100))
	require.True(t, b.EmitActions("s1", []action.Action{under}))
	assert.Equal(t, 1, sub.count())
}

func TestEmitToolResult_SizeCeiling(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true, MaxPayloadSize: 128})

	require.False(t, b.EmitToolResult("s1", "render_pdf", strings.Repeat("x", 200)))
	assert.Zero(t, sub.count())

	require.True(t, b.EmitToolResult("s1", "render_pdf", map[string]any{"url": "/f.pdf"}))
	assert.Equal(t, 1, sub.count())
}

func TestBridge_DisabledIsNoop(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: false})

	assert.False(t, b.EmitActions("s1", []action.Action{action.SetField("a", 1)}))
	assert.False(t, b.EmitToolResult("s1", "t", nil))
	assert.False(t, b.TranslateAndEmit("s1", translate.ToolResult{Tool: "t", Success: true}, nil))
	assert.Zero(t, sub.count())
}

func TestEmitActions_UnknownSessionReturnsFalse(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true})

	require.False(t, b.EmitActions("ghost", []action.Action{action.SetField("a", 1)}))
	assert.Zero(t, sub.count())
}

func TestTranslateAndEmit_ValidationErrors(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true})

	ok := b.TranslateAndEmit("s1", translate.ToolResult{
		Tool:    "validate_report_data",
		Success: true,
		Result: map[string]any{
			"valid": false,
			"errors": []any{
				map[string]any{"field": "title", "message": "required"},
			},
		},
	}, nil)
	require.True(t, ok)

	actions := sub.actionsIn(t, 0)
	require.Len(t, actions, 2)

	highlight := actions[0]
	assert.Equal(t, string(action.KindHighlightField), highlight["type"])
	payload := highlight["payload"].(map[string]any)
	assert.Equal(t, "title", payload["field"])
	assert.Equal(t, "required", payload["message"])

	toast := actions[1]
	assert.Equal(t, string(action.KindShowToast), toast["type"])
	assert.Contains(t, toast["payload"].(map[string]any)["message"], "1")
}

func TestTranslateAndEmit_ContextPatchPersists(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true})

	// First call patches the form snapshot with the current title.
	require.True(t, b.TranslateAndEmit("s1", translate.ToolResult{
		Tool:    "fill_report_form",
		Success: true,
		Result:  map[string]any{"data": map[string]any{"title": "Q3 Report"}},
	}, map[string]any{"title": "Q3 Report"}))

	// The context survives: the same field is skipped, the new one kept.
	require.True(t, b.TranslateAndEmit("s1", translate.ToolResult{
		Tool:    "fill_report_form",
		Success: true,
		Result:  map[string]any{"data": map[string]any{"title": "Q3 Report", "author": "j.doe"}},
	}, nil))

	actions := sub.actionsIn(t, 1)
	fields := actions[0]["payload"].(map[string]any)["fields"].(map[string]any)
	require.Len(t, fields, 1)
	assert.Equal(t, "j.doe", fields["author"])
	assert.Equal(t, 1, b.ContextCount())
}

func TestTranslateAndEmit_EmptyTranslationReturnsFalse(t *testing.T) {
	b, _, sub := newTestBridge(t, Options{Enabled: true})

	// lookup_law without content yields no actions.
	require.False(t, b.TranslateAndEmit("s1", translate.ToolResult{
		Tool:    "lookup_law",
		Success: true,
		Result:  map[string]any{},
	}, nil))
	assert.Zero(t, sub.count())
}

func TestDropSession_DiscardsContextAndChannel(t *testing.T) {
	b, mgr, _ := newTestBridge(t, Options{Enabled: true})

	require.True(t, b.TranslateAndEmit("s1", translate.ToolResult{
		Tool:    "validate_report_data",
		Success: true,
		Result:  map[string]any{"valid": true},
	}, nil))
	require.Equal(t, 1, b.ContextCount())

	b.DropSession("s1")
	assert.Zero(t, b.ContextCount())
	assert.False(t, mgr.Has("s1"))
	assert.False(t, b.EmitActions("s1", []action.Action{action.SetField("a", 1)}))
}

func TestTranslateAndEmit_ConcurrentSameSession(t *testing.T) {
	b, _, _ := newTestBridge(t, Options{Enabled: true})

	// The wrapper's forward path and an agent run can translate for the
	// same session at the same time; the shared form snapshot must stay
	// coherent under the race detector.
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.TranslateAndEmit("s1", translate.ToolResult{
					Tool:    "fill_report_form",
					Success: true,
					Result:  map[string]any{"data": map[string]any{"title": g}},
				}, map[string]any{"author": g})
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 1, b.ContextCount())
}

func TestMetrics_LatencySamplesBounded(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), true)
	for i := 0; i < 250; i++ {
		m.EmitLatency("render_pdf", time.Millisecond)
	}
	samples := m.LatencySamples()
	assert.Len(t, samples["render_pdf"], maxLatencySamples)
}
