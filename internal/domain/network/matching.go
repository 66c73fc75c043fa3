package network

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// A Caser is stateful, so each goroutine takes its own from the pool.
var folderPool = sync.Pool{
	New: func() any { return cases.Fold() },
}

// fold normalises s for case-insensitive comparison.
func fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	c := folderPool.Get().(cases.Caser)
	defer folderPool.Put(c)
	return c.String(s)
}

func foldAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fold(v)
	}
	return out
}

// notesOverlap reports whether two folded notes match: either contains the
// other. Short notes can match inside longer unrelated ones ("oud" in "loud").
func notesOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// sharedNotes returns up to limit distinct notes of a (original spelling)
// that overlap some note of b. folded slices are aligned with the originals.
func sharedNotes(a, aFolded, bFolded []string, limit int) []string {
	var matched []string
	seen := make(map[string]struct{}, limit)

	for i, fa := range aFolded {
		if _, dup := seen[fa]; dup {
			continue
		}
		for _, fb := range bFolded {
			if notesOverlap(fa, fb) {
				seen[fa] = struct{}{}
				matched = append(matched, a[i])
				break
			}
		}
		if len(matched) == limit {
			break
		}
	}
	return matched
}
