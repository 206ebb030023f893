// Package action defines the closed vocabulary of UI actions the bridge
// may deliver to a session, and the validation rules for each kind.
package action

import (
	"fmt"
	"time"
)

// Kind identifies one of the allowed UI action types.
type Kind string

const (
	KindSetField       Kind = "set_field"
	KindSetFields      Kind = "set_fields"
	KindOpenPanel      Kind = "open_panel"
	KindHighlightField Kind = "highlight_field"
	KindShowToast      Kind = "show_toast"
	KindStartPDFRender Kind = "start_pdf_render"
	KindUpdateProgress Kind = "update_progress"
	KindEndPDFRender   Kind = "end_pdf_render"
	KindInsertCitation Kind = "insert_law_citation"
	KindAddIssue       Kind = "add_issue"
	KindFocus          Kind = "focus"
)

// ToastType is the severity of a show_toast action.
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

// Action is a single directive sent to a UI session. Sequence is assigned
// by the channel manager at emission time; callers leave it zero.
type Action struct {
	Type      Kind           `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
	Sequence  uint64         `json:"sequence"`
}

// New builds an action of the given kind stamped with the current time.
func New(kind Kind, payload map[string]any) Action {
	if payload == nil {
		payload = map[string]any{}
	}
	return Action{
		Type:      kind,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// SetField sets a single report form field.
func SetField(field string, value any) Action {
	return New(KindSetField, map[string]any{"field": field, "value": value})
}

// SetFields sets multiple report form fields at once.
func SetFields(fields map[string]any) Action {
	return New(KindSetFields, map[string]any{"fields": fields})
}

// OpenPanel opens a named side panel, optionally with content to show.
func OpenPanel(panel string, content any) Action {
	p := map[string]any{"panel": panel}
	if content != nil {
		p["content"] = content
	}
	return New(KindOpenPanel, p)
}

// HighlightField marks a form field with a validation message.
func HighlightField(field, message string) Action {
	return New(KindHighlightField, map[string]any{"field": field, "message": message})
}

// ShowToast displays a transient notification.
func ShowToast(message string, typ ToastType) Action {
	return New(KindShowToast, map[string]any{"message": message, "type": string(typ)})
}

// StartPDFRender signals the start of a document render.
func StartPDFRender(document string) Action {
	return New(KindStartPDFRender, map[string]any{"document": document})
}

// UpdateProgress reports render progress in percent.
func UpdateProgress(percent int, stage string) Action {
	return New(KindUpdateProgress, map[string]any{"percent": percent, "stage": stage})
}

// EndPDFRender signals render completion with the artifact location.
func EndPDFRender(url, filename string) Action {
	return New(KindEndPDFRender, map[string]any{"url": url, "filename": filename})
}

// InsertCitation inserts fetched law/web content as a citation.
func InsertCitation(source string, content any) Action {
	return New(KindInsertCitation, map[string]any{"source": source, "content": content})
}

// validators holds the kind-specific payload checks. Kinds present with a
// nil check only require the generic envelope rules.
var validators = map[Kind]func(payload map[string]any) error{
	KindSetField: func(p map[string]any) error {
		if _, ok := p["field"].(string); !ok {
			return fmt.Errorf("set_field requires string field")
		}
		if _, ok := p["value"]; !ok {
			return fmt.Errorf("set_field requires value")
		}
		return nil
	},
	KindSetFields: func(p map[string]any) error {
		if _, ok := p["fields"].(map[string]any); !ok {
			return fmt.Errorf("set_fields requires fields object")
		}
		return nil
	},
	KindShowToast: func(p map[string]any) error {
		msg, ok := p["message"].(string)
		if !ok || msg == "" {
			return fmt.Errorf("show_toast requires message")
		}
		switch ToastType(stringOf(p["type"])) {
		case ToastSuccess, ToastError, ToastWarning, ToastInfo:
			return nil
		}
		return fmt.Errorf("show_toast type must be success|error|warning|info")
	},
	KindHighlightField: func(p map[string]any) error {
		if _, ok := p["field"].(string); !ok {
			return fmt.Errorf("highlight_field requires string field")
		}
		if _, ok := p["message"].(string); !ok {
			return fmt.Errorf("highlight_field requires string message")
		}
		return nil
	},
	KindOpenPanel:      nil,
	KindStartPDFRender: nil,
	KindUpdateProgress: nil,
	KindEndPDFRender:   nil,
	KindInsertCitation: nil,
	KindAddIssue:       nil,
	KindFocus:          nil,
}

// Validate checks an action against the whitelist. Unknown kinds are
// rejected outright; this is a whitelist, not a blacklist.
func Validate(a Action) error {
	if a.Type == "" {
		return fmt.Errorf("action kind is empty")
	}
	check, known := validators[a.Type]
	if !known {
		return fmt.Errorf("unknown action kind %q", a.Type)
	}
	if a.Payload == nil {
		return fmt.Errorf("action %s has no payload", a.Type)
	}
	if a.Timestamp <= 0 {
		return fmt.Errorf("action %s has no timestamp", a.Type)
	}
	if check != nil {
		return check(a.Payload)
	}
	return nil
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
