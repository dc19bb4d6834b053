// Package session implements SearchSession: the per-query state machine
// that fans a request out across selected workers, collects their streamed
// results under a monotonically increasing generation, and ranks the final
// result vector (spec.md 3, 4.4).
package session

import (
	"github.com/opendesk/launcherd/internal/wire"
)

// ItemRef is the reverse mapping target for a global id: which worker
// produced it and under what plugin-local id (spec.md 3, 4.4).
type ItemRef struct {
	WorkerID string
	LocalID  uint32
}

// item is one accumulated result, carrying everything Rank needs plus the
// bookkeeping to reassign global ids after sorting.
type item struct {
	ref     ItemRef
	order   int // original emission order within the session, for stability
	pluginIdx int // selection-order index of the producing plugin, for no_sort splicing
	result  wire.SearchResult
}

// Session is the ephemeral per-query state described by spec.md 3.
// Not safe for concurrent use; the service loop owns exactly one Session
// and accesses it only from its single reactor goroutine (spec.md 5).
type Session struct {
	Generation uint64
	Query      string

	// selected is the ordered set of worker ids consulted for this query,
	// in registry/selection order — also the no_sort splice order.
	selected []string
	pending  map[string]bool // worker id -> still awaiting completion

	items    []item
	nextSeq  int // monotonic emission-order counter, survives Clear
	refByID  map[int64]ItemRef // global id -> (worker, local id), rebuilt on every Finalize

	// resolveCategoryIcon looks up a worker's descriptor-provided category
	// icon. The session holds no registry reference of its own (spec.md 9's
	// arena+index design keeps workers/descriptors out of the session), so
	// the service loop wires this in via SetCategoryIconResolver.
	resolveCategoryIcon func(workerID string) *wire.Icon
}

// New starts a session for generation gen over query q, awaiting exactly
// the given selected workers.
func New(gen uint64, q string, selected []string) *Session {
	pending := make(map[string]bool, len(selected))
	for _, id := range selected {
		pending[id] = true
	}
	return &Session{
		Generation: gen,
		Query:      q,
		selected:   append([]string(nil), selected...),
		pending:    pending,
		refByID:    make(map[int64]ItemRef),
	}
}

// Selected returns the worker ids this session is awaiting/awaited, in
// selection order.
func (s *Session) Selected() []string { return append([]string(nil), s.selected...) }

// pluginIndex returns workerID's position in the selection order, used for
// no_sort splicing (spec.md 4.4: "plugins earlier in the selected set
// first").
func (s *Session) pluginIndex(workerID string) int {
	for i, id := range s.selected {
		if id == workerID {
			return i
		}
	}
	return len(s.selected) // unknown workers sort last; should not happen
}

// Append records one plugin result with its emission order. It assigns no
// global id; Finalize assigns dense global ids after ranking (spec.md 4.4
// "Item id mapping").
func (s *Session) Append(workerID string, pr wire.PluginSearchResult) {
	ref := ItemRef{WorkerID: workerID, LocalID: pr.ID}
	res := wire.SearchResult{
		Name:        pr.Name,
		Description: pr.Description,
		Icon:        pr.Icon,
		Window:      pr.Window,
	}
	res.CategoryIcon = s.categoryIcon(workerID)

	it := item{ref: ref, order: s.nextSeq, pluginIdx: s.pluginIndex(workerID), result: res}
	s.nextSeq++
	s.items = append(s.items, it)
}

func (s *Session) categoryIcon(workerID string) *wire.Icon {
	if s.resolveCategoryIcon == nil {
		return nil
	}
	return s.resolveCategoryIcon(workerID)
}

// SetCategoryIconResolver wires a lookup from worker id to that plugin's
// descriptor-provided category icon (spec.md 3: "The core annotates items
// ... with the source plugin's category icon").
func (s *Session) SetCategoryIconResolver(fn func(workerID string) *wire.Icon) {
	s.resolveCategoryIcon = fn
}

// Clear drops every item accumulated so far in this generation, from any
// worker (spec.md 4.4 "Clear semantics"). Since Finalize numbers only the
// retained items, ids restart at zero for post-Clear Appends. The
// emission-order sequence counter is
// NOT reset — only the set of retained items is — so stability ordering
// among post-Clear items still reflects true arrival order.
func (s *Session) Clear() {
	s.items = nil
}

// MarkFinished records that workerID is done for this generation — because
// it emitted Finished, died, or the generation was superseded by the
// caller. Returns true once every selected worker is done.
func (s *Session) MarkFinished(workerID string) (allDone bool) {
	delete(s.pending, workerID)
	return len(s.pending) == 0
}

// Done reports whether every selected worker has completed.
func (s *Session) Done() bool { return len(s.pending) == 0 }

// Finalize computes the ranked, densely-reindexed result vector and the
// matching id->ref table, per spec.md 4.4 "Ranking"/"Emission". noSortSet
// reports whether a given worker's plugin has no_sort=true.
func (s *Session) Finalize(noSortSet func(workerID string) bool) []wire.SearchResult {
	ranked := Rank(s.items, s.Query, noSortSet)

	out := make([]wire.SearchResult, len(ranked))
	s.refByID = make(map[int64]ItemRef, len(ranked))
	for i, it := range ranked {
		it.result.ID = int64(i)
		out[i] = it.result
		s.refByID[int64(i)] = it.ref
	}
	return out
}

// Resolve rewrites a frontend-facing global id back to the (worker,
// plugin-local id) pair assigned at the last Finalize, per spec.md 4.5's
// Activate/Complete/Quit/Context rewrite. Returns false for an id with no
// current mapping (spec.md 7: "drop the request silently").
func (s *Session) Resolve(globalID int64) (ItemRef, bool) {
	ref, ok := s.refByID[globalID]
	return ref, ok
}
