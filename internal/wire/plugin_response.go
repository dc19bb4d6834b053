package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PluginResponse is sent plugin->service.
type PluginResponse struct {
	Kind PluginResponseKind

	Append       PluginSearchResult // Kind == PluginResponseAppend
	Context      ContextPayload     // Kind == PluginResponseContext (plugin-local id)
	DesktopEntry DesktopEntry       // Kind == PluginResponseDesktopEntry
	Fill         string             // Kind == PluginResponseFill
}

type PluginResponseKind string

const (
	PluginResponseAppend       PluginResponseKind = "Append"
	PluginResponseClear        PluginResponseKind = "Clear"
	PluginResponseClose        PluginResponseKind = "Close"
	PluginResponseContext      PluginResponseKind = "Context"
	PluginResponseDesktopEntry PluginResponseKind = "DesktopEntry"
	PluginResponseFill         PluginResponseKind = "Fill"
	PluginResponseFinished     PluginResponseKind = "Finished"
)

func (p PluginResponse) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PluginResponseClear, PluginResponseClose, PluginResponseFinished:
		return json.Marshal(string(p.Kind))
	case PluginResponseAppend:
		return marshalTagged("Append", p.Append)
	case PluginResponseContext:
		return marshalTagged("Context", p.Context)
	case PluginResponseDesktopEntry:
		return marshalTagged("DesktopEntry", p.DesktopEntry)
	case PluginResponseFill:
		return marshalTagged("Fill", p.Fill)
	default:
		return nil, fmt.Errorf("wire: unknown plugin response kind %q", p.Kind)
	}
}

func (p *PluginResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		switch PluginResponseKind(unit) {
		case PluginResponseClear, PluginResponseClose, PluginResponseFinished:
			*p = PluginResponse{Kind: PluginResponseKind(unit)}
			return nil
		default:
			return fmt.Errorf("wire: unknown plugin response variant %q", unit)
		}
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: plugin response is neither a string nor an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: plugin response object must have exactly one key, got %d", len(tagged))
	}
	for k, payload := range tagged {
		switch PluginResponseKind(k) {
		case PluginResponseAppend:
			var item PluginSearchResult
			if err := json.Unmarshal(payload, &item); err != nil {
				return fmt.Errorf("wire: Append payload: %w", err)
			}
			*p = PluginResponse{Kind: PluginResponseAppend, Append: item}
		case PluginResponseContext:
			var c ContextPayload
			if err := json.Unmarshal(payload, &c); err != nil {
				return fmt.Errorf("wire: Context payload: %w", err)
			}
			*p = PluginResponse{Kind: PluginResponseContext, Context: c}
		case PluginResponseDesktopEntry:
			var d DesktopEntry
			if err := json.Unmarshal(payload, &d); err != nil {
				return fmt.Errorf("wire: DesktopEntry payload: %w", err)
			}
			*p = PluginResponse{Kind: PluginResponseDesktopEntry, DesktopEntry: d}
		case PluginResponseFill:
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("wire: Fill payload: %w", err)
			}
			*p = PluginResponse{Kind: PluginResponseFill, Fill: s}
		default:
			return fmt.Errorf("wire: unknown plugin response variant %q", k)
		}
		return nil
	}
	return nil // unreachable
}
