package notes

import (
	"sort"
	"strings"
	"time"
)

// DeriveView maps the raw note set plus transient view inputs to the ordered,
// filtered display list. It never mutates its input and is safe to recompute
// on every change.
//
// Filter: when the trimmed search text is non-empty, a note is retained iff
// its text contains the search text case-insensitively. Whitespace-only
// search filters nothing.
//
// Sort, stable over the filtered order, three keys:
//  1. pinned notes before unpinned, in every mode;
//  2. under SortImportant only, important before non-important among notes
//     with equal pinned state;
//  3. creation time, descending for SortNewest and SortImportant, ascending
//     for SortOldest. A nil CreatedAt sorts as timestamp zero.
func DeriveView(all []Note, search string, mode SortMode) []Note {
	q := strings.ToLower(strings.TrimSpace(search))

	view := make([]Note, 0, len(all))
	if q == "" {
		view = append(view, all...)
	} else {
		for _, n := range all {
			if strings.Contains(strings.ToLower(n.Text), q) {
				view = append(view, n)
			}
		}
	}

	sort.SliceStable(view, func(i, j int) bool {
		return displayLess(view[i], view[j], mode)
	})
	return view
}

func displayLess(a, b Note, mode SortMode) bool {
	if a.Pinned != b.Pinned {
		return a.Pinned
	}
	if mode == SortImportant && a.Important != b.Important {
		return a.Important
	}
	at := createdAtOrZero(a)
	bt := createdAtOrZero(b)
	if mode == SortOldest {
		return at.Before(bt)
	}
	return bt.Before(at)
}

func createdAtOrZero(n Note) time.Time {
	if n.CreatedAt == nil {
		return time.Time{}
	}
	return *n.CreatedAt
}
