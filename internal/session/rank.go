package session

import (
	"sort"
	"strings"
)

// Rank implements the transitive, rephrased two-tier stable sort of
// spec.md 4.4/9 (adopted in place of the source's non-transitive
// containment comparator, per spec.md 9's explicit guidance):
//
//  1. items whose lowercased name contains the lowercased query rank above
//     items that do not;
//  2. within a containment tier, lexicographic order of the lowercased name;
//  3. ties broken by original emission order (stable sort);
//  4. items from no_sort plugins retain emission order and are spliced at
//     the front, grouped by plugin-selection order.
func Rank(items []item, query string, noSort func(workerID string) bool) []item {
	q := strings.ToLower(query)

	var pinned, ranked []item
	for _, it := range items {
		if noSort != nil && noSort(it.ref.WorkerID) {
			pinned = append(pinned, it)
		} else {
			ranked = append(ranked, it)
		}
	}

	sort.SliceStable(pinned, func(i, j int) bool {
		if pinned[i].pluginIdx != pinned[j].pluginIdx {
			return pinned[i].pluginIdx < pinned[j].pluginIdx
		}
		return pinned[i].order < pinned[j].order
	})

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aContains := strings.Contains(strings.ToLower(a.result.Name), q)
		bContains := strings.Contains(strings.ToLower(b.result.Name), q)
		if aContains != bContains {
			return aContains // containing items sort first
		}
		aName := strings.ToLower(a.result.Name)
		bName := strings.ToLower(b.result.Name)
		if aName != bName {
			return aName < bName
		}
		return a.order < b.order
	})

	out := make([]item, 0, len(pinned)+len(ranked))
	out = append(out, pinned...)
	out = append(out, ranked...)
	return out
}
