// Package wire defines the three line-delimited JSON schemas that cross the
// launcher's IPC edges: Request (frontend<->service, service->plugin),
// PluginResponse (plugin->service), and Response (service->frontend).
//
// The source protocol encodes Rust enums: a unit variant serializes as a
// bare JSON string ("Interrupt"), a variant with a single payload field
// serializes as {"Variant": payload}. Go has no sum type, so each schema is
// a struct with at most one populated field plus a discriminant string, and
// custom (Un)MarshalJSON methods reproduce the externally-tagged wire shape
// exactly.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is sent frontend->service and, forwarded, service->plugin.
type Request struct {
	Kind RequestKind

	Activate         int64             // Kind == RequestActivate
	ActivateContext  ActivateContext   // Kind == RequestActivateContext
	Complete         int64             // Kind == RequestComplete
	Context          int64             // Kind == RequestContext
	Quit             int64             // Kind == RequestQuit
	Search           string            // Kind == RequestSearch
}

type RequestKind string

const (
	RequestActivate        RequestKind = "Activate"
	RequestActivateContext RequestKind = "ActivateContext"
	RequestComplete        RequestKind = "Complete"
	RequestContext         RequestKind = "Context"
	RequestExit            RequestKind = "Exit"
	RequestInterrupt       RequestKind = "Interrupt"
	RequestQuit            RequestKind = "Quit"
	RequestSearch          RequestKind = "Search"
)

// ActivateContext is the payload of {"ActivateContext": {...}}.
type ActivateContext struct {
	ID      int64           `json:"id"`
	Context json.RawMessage `json:"context"`
}

func ActivateReq(id int64) Request        { return Request{Kind: RequestActivate, Activate: id} }
func CompleteReq(id int64) Request        { return Request{Kind: RequestComplete, Complete: id} }
func ContextReq(id int64) Request         { return Request{Kind: RequestContext, Context: id} }
func QuitReq(id int64) Request            { return Request{Kind: RequestQuit, Quit: id} }
func SearchReq(q string) Request          { return Request{Kind: RequestSearch, Search: q} }
func ExitReq() Request                    { return Request{Kind: RequestExit} }
func InterruptReq() Request               { return Request{Kind: RequestInterrupt} }
func ActivateContextReq(id int64, ctx json.RawMessage) Request {
	return Request{Kind: RequestActivateContext, ActivateContext: ActivateContext{ID: id, Context: ctx}}
}

func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RequestExit:
		return json.Marshal("Exit")
	case RequestInterrupt:
		return json.Marshal("Interrupt")
	case RequestActivate:
		return marshalTagged("Activate", r.Activate)
	case RequestComplete:
		return marshalTagged("Complete", r.Complete)
	case RequestContext:
		return marshalTagged("Context", r.Context)
	case RequestQuit:
		return marshalTagged("Quit", r.Quit)
	case RequestSearch:
		return marshalTagged("Search", r.Search)
	case RequestActivateContext:
		return marshalTagged("ActivateContext", r.ActivateContext)
	default:
		return nil, fmt.Errorf("wire: unknown request kind %q", r.Kind)
	}
}

func (r *Request) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	// Unit variants arrive as a bare JSON string.
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		switch RequestKind(unit) {
		case RequestExit, RequestInterrupt:
			*r = Request{Kind: RequestKind(unit)}
			return nil
		default:
			return fmt.Errorf("wire: unknown request variant %q", unit)
		}
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: request is neither a string nor an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: request object must have exactly one key, got %d", len(tagged))
	}
	for k, payload := range tagged {
		switch RequestKind(k) {
		case RequestActivate:
			var id int64
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("wire: Activate payload: %w", err)
			}
			*r = Request{Kind: RequestActivate, Activate: id}
		case RequestComplete:
			var id int64
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("wire: Complete payload: %w", err)
			}
			*r = Request{Kind: RequestComplete, Complete: id}
		case RequestContext:
			var id int64
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("wire: Context payload: %w", err)
			}
			*r = Request{Kind: RequestContext, Context: id}
		case RequestQuit:
			var id int64
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("wire: Quit payload: %w", err)
			}
			*r = Request{Kind: RequestQuit, Quit: id}
		case RequestSearch:
			var q string
			if err := json.Unmarshal(payload, &q); err != nil {
				return fmt.Errorf("wire: Search payload: %w", err)
			}
			*r = Request{Kind: RequestSearch, Search: q}
		case RequestActivateContext:
			var ac ActivateContext
			if err := json.Unmarshal(payload, &ac); err != nil {
				return fmt.Errorf("wire: ActivateContext payload: %w", err)
			}
			*r = Request{Kind: RequestActivateContext, ActivateContext: ac}
		default:
			return fmt.Errorf("wire: unknown request variant %q", k)
		}
		return nil
	}
	return nil // unreachable
}

func marshalTagged(tag string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s payload: %w", tag, err)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	tagJSON, _ := json.Marshal(tag)
	buf.Write(tagJSON)
	buf.WriteByte(':')
	buf.Write(b)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
