// Package descriptor parses plugin metadata files into PluginDescriptor
// values (spec.md 3 and 4.2). The original format is a RON record; no
// maintained Go library parses RON (see DESIGN.md), so descriptors here are
// TOML, carrying the same shape (nested tables, scalars, optional fields)
// via github.com/pelletier/go-toml/v2.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the descriptor file looked for in every plugin directory.
const FileName = "plugin.toml"

// raw mirrors the on-disk TOML shape before compilation of its regex fields.
type raw struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	// Icon is a plain name ("accessories-calculator") or, when it denotes a
	// mime-type icon, prefixed "mime:" (e.g. "mime:text/plain") — a
	// deliberate simplification of the source's enum-variant icon field
	// (see DESIGN.md), since TOML has no native sum type either.
	Icon string `toml:"icon"`
	Bin  struct {
		Path string `toml:"path"`
	} `toml:"bin"`
	Query struct {
		Isolate    string `toml:"isolate"`
		Persistent bool   `toml:"persistent"`
		NoSort     bool   `toml:"no_sort"`
		Regex      string `toml:"regex"`
	} `toml:"query"`
}

// QueryPolicy is the descriptor's routing policy (spec.md 3, 4.2).
type QueryPolicy struct {
	Isolate    *regexp.Regexp
	Persistent bool
	NoSort     bool
	Regex      *regexp.Regexp
}

// PluginDescriptor is the immutable, once-parsed metadata for one plugin.
type PluginDescriptor struct {
	Name        string
	Description string
	Icon        string // empty, a bare icon name, or "mime:<type>"
	// ExecPath is the descriptor's bin.path resolved relative to Dir.
	ExecPath string
	// Dir is the plugin's directory (also used as the id and for tie-break
	// ordering in registry load order).
	Dir   string
	Query QueryPolicy
}

// CategoryIconParts reports the icon as a wire.Icon-shaped pair, split on the
// "mime:" convention described above.
func (d PluginDescriptor) CategoryIconParts() (isMime bool, value string) {
	const prefix = "mime:"
	if len(d.Icon) > len(prefix) && d.Icon[:len(prefix)] == prefix {
		return true, d.Icon[len(prefix):]
	}
	return false, d.Icon
}

// Load parses dir/plugin.toml into a PluginDescriptor. ExecPath is resolved
// relative to dir, per spec.md 6 ("resolved relative to the descriptor
// directory").
func Load(dir string) (PluginDescriptor, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return PluginDescriptor{}, fmt.Errorf("descriptor: read %s: %w", path, err)
	}

	var r raw
	if err := toml.Unmarshal(data, &r); err != nil {
		return PluginDescriptor{}, fmt.Errorf("descriptor: parse %s: %w", path, err)
	}

	if r.Name == "" {
		return PluginDescriptor{}, fmt.Errorf("descriptor: %s: missing name", path)
	}
	if r.Bin.Path == "" {
		return PluginDescriptor{}, fmt.Errorf("descriptor: %s: missing bin.path", path)
	}

	d := PluginDescriptor{
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		ExecPath:    resolveExec(dir, r.Bin.Path),
		Dir:         dir,
		Query: QueryPolicy{
			Persistent: r.Query.Persistent,
			NoSort:     r.Query.NoSort,
		},
	}

	if r.Query.Isolate != "" {
		re, err := regexp.Compile(r.Query.Isolate)
		if err != nil {
			return PluginDescriptor{}, fmt.Errorf("descriptor: %s: bad query.isolate: %w", path, err)
		}
		d.Query.Isolate = re
	}
	if r.Query.Regex != "" {
		re, err := regexp.Compile(r.Query.Regex)
		if err != nil {
			return PluginDescriptor{}, fmt.Errorf("descriptor: %s: bad query.regex: %w", path, err)
		}
		d.Query.Regex = re
	}

	return d, nil
}

func resolveExec(dir, binPath string) string {
	if filepath.IsAbs(binPath) {
		return binPath
	}
	return filepath.Join(dir, binPath)
}
