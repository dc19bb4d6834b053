package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is sent service->frontend.
type Response struct {
	Kind ResponseKind

	DesktopEntry DesktopEntry     // Kind == ResponseDesktopEntry
	Update       []SearchResult   // Kind == ResponseUpdate
	Fill         string           // Kind == ResponseFill
	Context      ContextPayload   // Kind == ResponseContext
}

type ResponseKind string

const (
	ResponseClose        ResponseKind = "Close"
	ResponseDesktopEntry ResponseKind = "DesktopEntry"
	ResponseUpdate       ResponseKind = "Update"
	ResponseFill         ResponseKind = "Fill"
	ResponseContext      ResponseKind = "Context"
)

func CloseResp() Response { return Response{Kind: ResponseClose} }
func UpdateResp(items []SearchResult) Response {
	if items == nil {
		items = []SearchResult{}
	}
	return Response{Kind: ResponseUpdate, Update: items}
}
func FillResp(s string) Response { return Response{Kind: ResponseFill, Fill: s} }
func DesktopEntryResp(d DesktopEntry) Response {
	return Response{Kind: ResponseDesktopEntry, DesktopEntry: d}
}
func ContextResp(c ContextPayload) Response { return Response{Kind: ResponseContext, Context: c} }

func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ResponseClose:
		return json.Marshal("Close")
	case ResponseDesktopEntry:
		return marshalTagged("DesktopEntry", r.DesktopEntry)
	case ResponseUpdate:
		items := r.Update
		if items == nil {
			items = []SearchResult{}
		}
		return marshalTagged("Update", items)
	case ResponseFill:
		return marshalTagged("Fill", r.Fill)
	case ResponseContext:
		return marshalTagged("Context", r.Context)
	default:
		return nil, fmt.Errorf("wire: unknown response kind %q", r.Kind)
	}
}

func (r *Response) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		if ResponseKind(unit) == ResponseClose {
			*r = Response{Kind: ResponseClose}
			return nil
		}
		return fmt.Errorf("wire: unknown response variant %q", unit)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: response is neither a string nor an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: response object must have exactly one key, got %d", len(tagged))
	}
	for k, payload := range tagged {
		switch ResponseKind(k) {
		case ResponseDesktopEntry:
			var d DesktopEntry
			if err := json.Unmarshal(payload, &d); err != nil {
				return fmt.Errorf("wire: DesktopEntry payload: %w", err)
			}
			*r = Response{Kind: ResponseDesktopEntry, DesktopEntry: d}
		case ResponseUpdate:
			var items []SearchResult
			if err := json.Unmarshal(payload, &items); err != nil {
				return fmt.Errorf("wire: Update payload: %w", err)
			}
			*r = Response{Kind: ResponseUpdate, Update: items}
		case ResponseFill:
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("wire: Fill payload: %w", err)
			}
			*r = Response{Kind: ResponseFill, Fill: s}
		case ResponseContext:
			var c ContextPayload
			if err := json.Unmarshal(payload, &c); err != nil {
				return fmt.Errorf("wire: Context payload: %w", err)
			}
			*r = Response{Kind: ResponseContext, Context: c}
		default:
			return fmt.Errorf("wire: unknown response variant %q", k)
		}
		return nil
	}
	return nil // unreachable
}
