package translate

import (
	"testing"

	"github.com/lexdraft/lexdraft/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(actions []action.Action) []action.Kind {
	out := make([]action.Kind, len(actions))
	for i, a := range actions {
		out[i] = a.Type
	}
	return out
}

func TestTranslate_FillForm(t *testing.T) {
	tr := NewTranslator()
	tctx := NewContext("s1", "u1")

	actions := tr.Translate(ToolResult{
		Tool:    "fill_report_form",
		Success: true,
		Result: map[string]any{
			"data": map[string]any{"title": "Incident Report", "author": "j.doe"},
		},
	}, tctx)

	require.Equal(t, []action.Kind{
		action.KindSetFields,
		action.KindShowToast,
		action.KindOpenPanel,
	}, kinds(actions))

	fields := actions[0].Payload["fields"].(map[string]any)
	assert.Equal(t, "Incident Report", fields["title"])
	assert.Equal(t, "success", actions[1].Payload["type"])
}

func TestTranslate_FillForm_SkipsFieldsAlreadyInSnapshot(t *testing.T) {
	tr := NewTranslator()
	tctx := NewContext("s1", "u1")
	tctx.ApplyPatch(map[string]any{"title": "Incident Report"})

	actions := tr.Translate(ToolResult{
		Tool:    "fill_report_form",
		Success: true,
		Result: map[string]any{
			"data": map[string]any{"title": "Incident Report", "author": "j.doe"},
		},
	}, tctx)

	fields := actions[0].Payload["fields"].(map[string]any)
	assert.Len(t, fields, 1)
	assert.Equal(t, "j.doe", fields["author"])
}

func TestTranslate_FillForm_NoData(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{
		Tool:    "fill_report_form",
		Success: true,
		Result:  map[string]any{},
	}, NewContext("s1", ""))

	require.Equal(t, []action.Kind{action.KindShowToast}, kinds(actions))
	assert.Equal(t, "warning", actions[0].Payload["type"])
}

func TestTranslate_ValidateSuccess(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{
		Tool:    "validate_report_data",
		Success: true,
		Result:  map[string]any{"valid": true},
	}, NewContext("s1", ""))

	require.Equal(t, []action.Kind{action.KindShowToast}, kinds(actions))
	assert.Equal(t, "success", actions[0].Payload["type"])
}

func TestTranslate_ValidateErrors(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{
		Tool:    "validate_report_data",
		Success: true,
		Result: map[string]any{
			"valid": false,
			"errors": []any{
				map[string]any{"field": "title", "message": "required"},
				map[string]any{"field": "date", "message": "invalid format"},
			},
		},
	}, NewContext("s1", ""))

	require.Equal(t, []action.Kind{
		action.KindHighlightField,
		action.KindHighlightField,
		action.KindShowToast,
	}, kinds(actions))
	assert.Equal(t, "title", actions[0].Payload["field"])
	assert.Equal(t, "required", actions[0].Payload["message"])
	assert.Contains(t, actions[2].Payload["message"], "2")
	assert.Equal(t, "error", actions[2].Payload["type"])
}

func TestTranslate_RenderPDF(t *testing.T) {
	tr := NewTranslator()

	t.Run("with url", func(t *testing.T) {
		actions := tr.Translate(ToolResult{
			Tool:    "render_pdf",
			Success: true,
			Result:  map[string]any{"document": "report-7", "url": "/files/report-7.pdf", "filename": "report-7.pdf"},
		}, NewContext("s1", ""))

		require.Equal(t, []action.Kind{
			action.KindStartPDFRender,
			action.KindUpdateProgress,
			action.KindEndPDFRender,
		}, kinds(actions))
		assert.Equal(t, "/files/report-7.pdf", actions[2].Payload["url"])
	})

	t.Run("without url", func(t *testing.T) {
		actions := tr.Translate(ToolResult{
			Tool:    "render_pdf",
			Success: true,
			Result:  map[string]any{"document": "report-7"},
		}, NewContext("s1", ""))

		require.Equal(t, []action.Kind{
			action.KindStartPDFRender,
			action.KindUpdateProgress,
		}, kinds(actions))
	})
}

func TestTranslate_Citations(t *testing.T) {
	tr := NewTranslator()

	actions := tr.Translate(ToolResult{
		Tool:    "lookup_law",
		Success: true,
		Result:  map[string]any{"content": "GDPR Art. 17"},
	}, NewContext("s1", ""))
	require.Equal(t, []action.Kind{action.KindInsertCitation, action.KindShowToast}, kinds(actions))
	assert.Equal(t, "law", actions[0].Payload["source"])

	// Without content there is nothing to insert.
	empty := tr.Translate(ToolResult{
		Tool:    "fetch_web_content",
		Success: true,
		Result:  map[string]any{},
	}, NewContext("s1", ""))
	assert.Empty(t, empty)
}

func TestTranslate_UploadImage(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{
		Tool:    "upload_image",
		Success: true,
		Result: map[string]any{
			"url":    "/img/cover.png",
			"width":  800,
			"height": 600,
			"format": "png",
		},
	}, NewContext("s1", ""))

	require.Equal(t, []action.Kind{action.KindSetField, action.KindShowToast}, kinds(actions))
	assert.Equal(t, "cover_image_url", actions[0].Payload["field"])
	assert.Equal(t, "/img/cover.png", actions[0].Payload["value"])
	meta := actions[0].Payload["meta"].(map[string]any)
	assert.Equal(t, 800, meta["width"])
}

func TestTranslate_UnknownToolGenericToast(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{Tool: "mystery_tool", Success: true}, NewContext("s1", ""))

	require.Equal(t, []action.Kind{action.KindShowToast}, kinds(actions))
	assert.Contains(t, actions[0].Payload["message"], "mystery_tool")
	assert.Equal(t, "success", actions[0].Payload["type"])
}

func TestTranslate_FailureBypassesToolRules(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{
		Tool:    "render_pdf",
		Success: false,
		Error:   "converter crashed",
	}, NewContext("s1", ""))

	require.Equal(t, []action.Kind{action.KindShowToast}, kinds(actions))
	msg := actions[0].Payload["message"].(string)
	assert.Contains(t, msg, "render_pdf")
	assert.Contains(t, msg, "converter crashed")
	assert.Equal(t, "error", actions[0].Payload["type"])
}

func TestTranslate_FailureWithoutMessage(t *testing.T) {
	tr := NewTranslator()
	actions := tr.Translate(ToolResult{Tool: "render_pdf", Success: false}, NewContext("s1", ""))
	assert.Contains(t, actions[0].Payload["message"], "unknown error")
}

func TestTranslate_Deterministic(t *testing.T) {
	tr := NewTranslator()
	res := ToolResult{
		Tool:    "validate_report_data",
		Success: true,
		Result: map[string]any{
			"valid":  false,
			"errors": []any{map[string]any{"field": "title", "message": "required"}},
		},
	}

	first := tr.Translate(res, NewContext("s1", ""))
	second := tr.Translate(res, NewContext("s1", ""))

	require.Equal(t, kinds(first), kinds(second))
	require.Len(t, second, len(first))
	for i := range first {
		assert.ElementsMatch(t, payloadKeys(first[i]), payloadKeys(second[i]))
		assert.Equal(t, first[i].Payload["message"], second[i].Payload["message"])
	}
}

func payloadKeys(a action.Action) []string {
	keys := make([]string, 0, len(a.Payload))
	for k := range a.Payload {
		keys = append(keys, k)
	}
	return keys
}

func TestTranslate_RegisteredToolExtendsDispatch(t *testing.T) {
	tr := NewTranslator()
	tr.Register("summarize", func(_ ToolResult, _ *Context) []action.Action {
		return []action.Action{action.OpenPanel("summary", "done")}
	})

	actions := tr.Translate(ToolResult{Tool: "summarize", Success: true}, NewContext("s1", ""))
	require.Equal(t, []action.Kind{action.KindOpenPanel}, kinds(actions))
}
