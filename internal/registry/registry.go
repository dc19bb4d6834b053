// Package registry implements the Plugin Registry (spec.md 3, 4.2): startup
// discovery of plugin descriptors across a layered search path, and the
// deterministic query selection policy.
package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/opendesk/launcherd/internal/descriptor"
	"github.com/opendesk/launcherd/internal/launchlog"
)

// PluginID identifies a plugin within a Registry: its directory name. It is
// also the worker table key; Entry.Index records the plugin's load order.
type PluginID = string

// Entry pairs a descriptor with its registry-assigned index.
type Entry struct {
	Index int
	Descriptor descriptor.PluginDescriptor
}

// Registry is the frozen, post-startup catalog of candidate plugins.
// Immutable after Load returns: spec.md 3 "frozen after startup; no dynamic
// plugin registration".
type Registry struct {
	// order is load order — user-scope entries first, which is also the
	// tie-break order spec.md 4.2 step 3 requires ("first wins, which in
	// practice is user-scope").
	order   []string
	plugins map[string]Entry
}

// SearchPaths returns the layered search path in priority order: user,
// an optional extra tier from LAUNCHERD_PLUGIN_PATH (colon separated, an
// expansion documented in SPEC_FULL.md to let tests and local development
// add plugin directories without touching /etc or /usr/lib), system-admin,
// distribution.
func SearchPaths() []string {
	var paths []string

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "share", "pop-launcher", "plugins"))
	}
	if extra := os.Getenv("LAUNCHERD_PLUGIN_PATH"); extra != "" {
		paths = append(paths, strings.Split(extra, string(os.PathListSeparator))...)
	}
	paths = append(paths,
		"/etc/pop-launcher/plugins",
		"/usr/lib/pop-launcher/plugins",
	)
	return paths
}

// Load walks searchPaths in order, reading one descriptor.PluginDescriptor
// per subdirectory. A plugin directory name that already has an entry
// (found in a higher-priority tier) shadows lower tiers, per spec.md 4.2
// ("user entries shadow identically-named ones lower in the stack").
// Malformed descriptors are logged and skipped (spec.md 7).
func Load(searchPaths []string) *Registry {
	r := &Registry{plugins: make(map[string]Entry)}

	for _, root := range searchPaths {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue // search path doesn't exist; not an error (spec.md says nothing about this case)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if _, shadowed := r.plugins[name]; shadowed {
				continue
			}
			dir := filepath.Join(root, name)
			d, err := descriptor.Load(dir)
			if err != nil {
				launchlog.Warn().Err(err).Str("dir", dir).Msg("skipping malformed plugin descriptor")
				continue
			}
			r.plugins[name] = Entry{Index: len(r.order), Descriptor: d}
			r.order = append(r.order, name)
		}
	}
	return r
}

// Get returns the descriptor for id, if loaded.
func (r *Registry) Get(id PluginID) (descriptor.PluginDescriptor, bool) {
	e, ok := r.plugins[id]
	return e.Descriptor, ok
}

// All returns every loaded plugin id in registry load order.
func (r *Registry) All() []PluginID {
	out := make([]PluginID, len(r.order))
	copy(out, r.order)
	return out
}

// Select implements the query-selection policy of spec.md 4.2: total and
// deterministic given the registry.
//
//  1. M = plugins with no regex, or whose regex matches q.
//  2. if any plugin in M isolates on q, the effective set is that plugin
//     alone (load-order tie-break — first match wins).
//  3. if q is empty, the effective set is restricted to M's persistent
//     plugins.
//  4. otherwise the effective set is M.
func (r *Registry) Select(q string) []PluginID {
	var m []PluginID
	for _, id := range r.order {
		d := r.plugins[id].Descriptor
		if d.Query.Regex == nil || d.Query.Regex.MatchString(q) {
			m = append(m, id)
		}
	}

	for _, id := range m {
		d := r.plugins[id].Descriptor
		if d.Query.Isolate != nil && d.Query.Isolate.MatchString(q) {
			return []PluginID{id}
		}
	}

	if q == "" {
		var persistent []PluginID
		for _, id := range m {
			if r.plugins[id].Descriptor.Query.Persistent {
				persistent = append(persistent, id)
			}
		}
		return persistent
	}

	return m
}
