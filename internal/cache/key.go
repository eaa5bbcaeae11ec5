package cache

import (
	"sort"
	"strings"
)

// ItemKey is the cache key for a single normalized identifier.
func ItemKey(endpoint, id string) string {
	return endpoint + ":" + strings.ToUpper(strings.TrimSpace(id))
}

// BatchKey canonicalizes an unordered identifier set: trimmed, upper-cased,
// deduplicated and sorted, so any ordering or casing of the same set yields
// the same key.
func BatchKey(endpoint string, ids []string) string {
	return endpoint + ":batch:" + strings.Join(Canonical(ids), ",")
}

// Canonical returns the sorted, deduplicated, upper-cased identifiers.
func Canonical(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
