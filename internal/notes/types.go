// Package notes holds the note entity and the pure view-model core:
// search filtering, ordering, sort-mode cycling, and export formatting.
// Everything in this package is a deterministic function of its inputs;
// persistence and live sync live in internal/store.
package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Note is the sole persisted entity: one user-authored text item with two
// priority flags. CreatedAt is assigned by the storage backend on commit;
// nil means the backend has not echoed the committed value yet (a note may
// transiently appear in the live view with it unset).
type Note struct {
	ID        string     `json:"id" bson:"_id"`
	Text      string     `json:"text" bson:"text"`
	Pinned    bool       `json:"pinned" bson:"pinned"`
	Important bool       `json:"important" bson:"important"`
	CreatedAt *time.Time `json:"created_at" bson:"createdAt,omitempty"`
}

// ErrBlankText is returned when note text is empty or whitespace-only.
// Blank text is never persisted; callers reject it before any backend call.
var ErrBlankText = errors.New("note text is empty")

// CleanText trims text and validates it for persistence.
// A note is valid iff the trimmed text is non-empty; there is no other
// validation.
func CleanText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrBlankText
	}
	return trimmed, nil
}

// NotePatch is a partial update: nil fields are left untouched.
type NotePatch struct {
	Text      *string `json:"text,omitempty"`
	Pinned    *bool   `json:"pinned,omitempty"`
	Important *bool   `json:"important,omitempty"`
}

// SortMode selects the ordering applied after the pinned-first rule.
type SortMode string

const (
	// SortNewest orders by creation time descending. The default.
	SortNewest SortMode = "newest"

	// SortOldest orders by creation time ascending.
	SortOldest SortMode = "oldest"

	// SortImportant orders important notes first, then newest-first.
	SortImportant SortMode = "important"
)

// Valid reports whether m is one of the three sort modes.
func (m SortMode) Valid() bool {
	return m == SortNewest || m == SortOldest || m == SortImportant
}

// Cycle advances to the next mode in the fixed order
// newest -> oldest -> important -> newest.
func (m SortMode) Cycle() SortMode {
	switch m {
	case SortNewest:
		return SortOldest
	case SortOldest:
		return SortImportant
	default:
		return SortNewest
	}
}

// ParseSortMode parses a sort mode from its wire form.
func ParseSortMode(s string) (SortMode, error) {
	m := SortMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown sort mode: %q", s)
	}
	return m, nil
}
