// Package translate maps raw tool results into ordered lists of UI
// actions. Each known tool has a dedicated handler; adding a tool means
// registering one handler, never touching the dispatch skeleton.
package translate

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/lexdraft/lexdraft/internal/action"
)

// ToolResult is the outcome of one tool invocation as seen by the bridge.
// Success defaults to true for results built from a completed call; the
// tool wrapper sets it to false with an Error when an invocation fails.
type ToolResult struct {
	Tool    string         `json:"tool"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

// Handler maps one tool's result to actions given the session context.
type Handler func(res ToolResult, tctx *Context) []action.Action

// Translator dispatches tool results to per-tool handlers.
type Translator struct {
	handlers map[string]Handler
}

// NewTranslator creates a translator with the built-in report tool
// handlers registered.
func NewTranslator() *Translator {
	t := &Translator{handlers: make(map[string]Handler)}
	t.Register("fill_report_form", translateFillForm)
	t.Register("validate_report_data", translateValidate)
	t.Register("render_pdf", translateRenderPDF)
	t.Register("lookup_law", citationHandler("law"))
	t.Register("fetch_web_content", citationHandler("web"))
	t.Register("upload_image", translateUploadImage)
	return t
}

// Register installs the handler for a tool name, replacing any previous one.
func (t *Translator) Register(tool string, h Handler) {
	t.handlers[tool] = h
}

// Translate produces the ordered action list for a tool result. It is a
// pure function of (result, context) and never panics; a handler failure
// degrades to an empty list.
func (t *Translator) Translate(res ToolResult, tctx *Context) (actions []action.Action) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("translator panic recovered", "tool", res.Tool, "panic", r)
			actions = nil
		}
	}()

	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "unknown error"
		}
		return []action.Action{
			action.ShowToast(fmt.Sprintf("Tool %s failed: %s", res.Tool, msg), action.ToastError),
		}
	}

	if h, ok := t.handlers[res.Tool]; ok {
		return h(res, tctx)
	}
	return []action.Action{
		action.ShowToast(fmt.Sprintf("Tool %s completed", res.Tool), action.ToastSuccess),
	}
}

func translateFillForm(res ToolResult, tctx *Context) []action.Action {
	data, _ := res.Result["data"].(map[string]any)
	if len(data) == 0 {
		return []action.Action{
			action.ShowToast("Form tool returned no fields", action.ToastWarning),
		}
	}

	// Skip fields the session's form snapshot already holds at this value.
	fields := make(map[string]any, len(data))
	for k, v := range data {
		if cur, ok := tctx.Form[k]; ok && reflect.DeepEqual(cur, v) {
			continue
		}
		fields[k] = v
	}
	if len(fields) == 0 {
		fields = data
	}

	return []action.Action{
		action.SetFields(fields),
		action.ShowToast(fmt.Sprintf("Filled %d report field(s)", len(fields)), action.ToastSuccess),
		action.OpenPanel("preview", nil),
	}
}

func translateValidate(res ToolResult, _ *Context) []action.Action {
	valid, _ := res.Result["valid"].(bool)
	if valid {
		return []action.Action{
			action.ShowToast("Report data is valid", action.ToastSuccess),
		}
	}

	var actions []action.Action
	errs, _ := res.Result["errors"].([]any)
	for _, e := range errs {
		fieldErr, ok := e.(map[string]any)
		if !ok {
			continue
		}
		field, _ := fieldErr["field"].(string)
		message, _ := fieldErr["message"].(string)
		actions = append(actions, action.HighlightField(field, message))
	}
	actions = append(actions, action.ShowToast(
		fmt.Sprintf("%d validation issue(s) found", len(errs)), action.ToastError))
	return actions
}

func translateRenderPDF(res ToolResult, _ *Context) []action.Action {
	document, _ := res.Result["document"].(string)
	actions := []action.Action{
		action.StartPDFRender(document),
		action.UpdateProgress(50, "rendering"),
	}
	if url, _ := res.Result["url"].(string); url != "" {
		filename, _ := res.Result["filename"].(string)
		actions = append(actions, action.EndPDFRender(url, filename))
	}
	return actions
}

func citationHandler(source string) Handler {
	return func(res ToolResult, _ *Context) []action.Action {
		content, ok := res.Result["content"]
		if !ok || content == nil || content == "" {
			return nil
		}
		return []action.Action{
			action.InsertCitation(source, content),
			action.ShowToast("Citation inserted", action.ToastSuccess),
		}
	}
}

func translateUploadImage(res ToolResult, _ *Context) []action.Action {
	url, _ := res.Result["url"].(string)
	if url == "" {
		return []action.Action{
			action.ShowToast("Tool upload_image completed", action.ToastSuccess),
		}
	}

	a := action.SetField("cover_image_url", url)
	meta := map[string]any{}
	for _, key := range []string{"width", "height", "format", "size"} {
		if v, ok := res.Result[key]; ok {
			meta[key] = v
		}
	}
	if len(meta) > 0 {
		a.Payload["meta"] = meta
	}
	return []action.Action{
		a,
		action.ShowToast("Image uploaded", action.ToastSuccess),
	}
}
