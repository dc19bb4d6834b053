package session

import (
	"testing"

	"github.com/opendesk/launcherd/internal/wire"
	"github.com/stretchr/testify/require"
)

func names(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.result.Name
	}
	return out
}

func mkItems(pairs ...struct {
	worker string
	name   string
}) []item {
	out := make([]item, len(pairs))
	for i, p := range pairs {
		out[i] = item{
			ref:    ItemRef{WorkerID: p.worker, LocalID: uint32(i)},
			order:  i,
			result: wire.SearchResult{Name: p.name},
		}
	}
	return out
}

func pair(w, n string) struct {
	worker string
	name   string
} {
	return struct {
		worker string
		name   string
	}{w, n}
}

func TestRankContainmentTierDominates(t *testing.T) {
	items := mkItems(pair("w", "zzz foo zzz"), pair("w", "apple"))
	ranked := Rank(items, "foo", noSortNone)
	require.Equal(t, []string{"zzz foo zzz", "apple"}, names(ranked))
}

func TestRankLexicographicWithinTier(t *testing.T) {
	items := mkItems(pair("w", "Banana"), pair("w", "apple"), pair("w", "Cherry"))
	ranked := Rank(items, "", noSortNone)
	require.Equal(t, []string{"apple", "Banana", "Cherry"}, names(ranked))
}

func TestRankStableOnEqualKeys(t *testing.T) {
	items := mkItems(pair("w", "same"), pair("w", "same"))
	ranked := Rank(items, "same", noSortNone)
	require.Equal(t, items[0].ref, ranked[0].ref)
	require.Equal(t, items[1].ref, ranked[1].ref)
}

func TestRankNoSortPluginsSpliceToFront(t *testing.T) {
	items := []item{
		{ref: ItemRef{WorkerID: "sorted"}, order: 0, pluginIdx: 1, result: wire.SearchResult{Name: "zzz"}},
		{ref: ItemRef{WorkerID: "pinned"}, order: 1, pluginIdx: 0, result: wire.SearchResult{Name: "bbb"}},
		{ref: ItemRef{WorkerID: "pinned"}, order: 2, pluginIdx: 0, result: wire.SearchResult{Name: "aaa"}},
	}
	noSort := func(id string) bool { return id == "pinned" }

	ranked := Rank(items, "", noSort)
	require.Equal(t, []string{"bbb", "aaa", "zzz"}, names(ranked))
}

func TestRankContainmentBothDirections(t *testing.T) {
	// "calculator" contains "calc"; "cal" does not contain the longer query
	// "calculator app" — check both a short query against a longer name and
	// a long query against a shorter name.
	items := mkItems(pair("w", "calculator"), pair("w", "unrelated"))
	ranked := Rank(items, "calc", noSortNone)
	require.Equal(t, "calculator", ranked[0].result.Name)

	items2 := mkItems(pair("w", "cal"), pair("w", "unrelated"))
	ranked2 := Rank(items2, "calculator app", noSortNone)
	// neither contains the query; falls back to lexicographic order.
	require.Equal(t, []string{"cal", "unrelated"}, names(ranked2))
}
