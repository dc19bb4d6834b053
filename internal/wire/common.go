package wire

import (
	"encoding/json"
	"fmt"
)

// Icon is the externally-tagged {"Name": "..."} | {"Mime": "..."} enum used
// for both item icons and category icons.
type Icon struct {
	Source IconSource
	Value  string
}

type IconSource string

const (
	IconName IconSource = "Name"
	IconMime IconSource = "Mime"
)

func NameIcon(v string) *Icon {
	if v == "" {
		return nil
	}
	return &Icon{Source: IconName, Value: v}
}

func MimeIcon(v string) *Icon {
	if v == "" {
		return nil
	}
	return &Icon{Source: IconMime, Value: v}
}

func (i Icon) MarshalJSON() ([]byte, error) {
	switch i.Source {
	case IconName, IconMime:
		return marshalTagged(string(i.Source), i.Value)
	default:
		return nil, fmt.Errorf("wire: unknown icon source %q", i.Source)
	}
}

func (i *Icon) UnmarshalJSON(data []byte) error {
	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: icon must be an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: icon object must have exactly one key, got %d", len(tagged))
	}
	for k, v := range tagged {
		switch IconSource(k) {
		case IconName, IconMime:
			*i = Icon{Source: IconSource(k), Value: v}
			return nil
		default:
			return fmt.Errorf("wire: unknown icon source %q", k)
		}
	}
	return nil
}

// GPUPreference is the enum carried by DesktopEntry.
type GPUPreference string

const (
	GPUDefault    GPUPreference = "Default"
	GPUNonDefault GPUPreference = "NonDefault"
)

// DesktopEntry is forwarded verbatim from plugin to frontend.
type DesktopEntry struct {
	Path          string        `json:"path"`
	GPUPreference GPUPreference `json:"gpu_preference"`
}

// ContextOption is one entry of a Context response's options list.
type ContextOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ContextPayload is the shared shape of {"Context": {"id": n, "options": [...]}},
// used by both PluginResponse (plugin-local id) and Response (global id) —
// the core rewrites id in between, per spec.md 4.4.
type ContextPayload struct {
	ID      int64           `json:"id"`
	Options []ContextOption `json:"options"`
}

// Window is an opaque pair the core forwards verbatim.
type Window [2]int64

// SearchResult is the aggregated, core-annotated item sent to the frontend
// inside an Update response.
type SearchResult struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Icon          *Icon   `json:"icon,omitempty"`
	CategoryIcon  *Icon   `json:"category_icon,omitempty"`
	Window        *Window `json:"window,omitempty"`
}

// PluginSearchResult is what a plugin emits inside Append.
type PluginSearchResult struct {
	ID          uint32   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	Icon        *Icon    `json:"icon,omitempty"`
	Exec        string   `json:"exec,omitempty"`
	Window      *Window  `json:"window,omitempty"`
}
