package store

import (
	"sort"
	"sync"

	"github.com/glownotes/glownotes/internal/notes"
)

// snapshotHub fans a full-replacement snapshot out to every subscriber.
// Sends never block: each subscriber channel holds at most one pending event
// and a newer snapshot displaces a stale one, which is safe because every
// event carries the complete set.
type snapshotHub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newSnapshotHub() *snapshotHub {
	return &snapshotHub{subs: make(map[chan Event]struct{})}
}

func (h *snapshotHub) subscribe() chan Event {
	ch := make(chan Event, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *snapshotHub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *snapshotHub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// sortSnapshot orders a snapshot creation-descending, the backend delivery
// order every subscriber sees. Uncommitted timestamps sort last.
func sortSnapshot(snap []notes.Note) {
	sort.SliceStable(snap, func(i, j int) bool {
		var it, jt int64
		if snap[i].CreatedAt != nil {
			it = snap[i].CreatedAt.UnixNano()
		}
		if snap[j].CreatedAt != nil {
			jt = snap[j].CreatedAt.UnixNano()
		}
		return it > jt
	})
}
