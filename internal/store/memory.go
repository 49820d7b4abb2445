package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glownotes/glownotes/internal/errs"
	"github.com/glownotes/glownotes/internal/notes"
)

// MemoryStore is the in-process backend used by --test mode and package
// tests. It mirrors the contract of the real backends, including snapshot
// broadcast on every change.
type MemoryStore struct {
	mu    sync.Mutex
	notes map[string]notes.Note
	hub   *snapshotHub

	// now is swappable so tests control creation instants.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes: make(map[string]notes.Note),
		hub:   newSnapshotHub(),
		now:   time.Now,
	}
}

// SetNowFunc overrides the clock. Tests only.
func (m *MemoryStore) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) CreateNote(_ context.Context, text string) (string, error) {
	m.mu.Lock()
	id := uuid.NewString()
	createdAt := m.now().UTC()
	m.notes[id] = notes.Note{
		ID:        id,
		Text:      text,
		CreatedAt: &createdAt,
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.hub.broadcast(Event{Snapshot: snap})
	return id, nil
}

func (m *MemoryStore) UpdateNote(_ context.Context, id string, patch notes.NotePatch) error {
	m.mu.Lock()
	n, ok := m.notes[id]
	if !ok {
		m.mu.Unlock()
		return errs.New(errs.NotFound, "note not found")
	}
	if patch.Text != nil {
		n.Text = *patch.Text
	}
	if patch.Pinned != nil {
		n.Pinned = *patch.Pinned
	}
	if patch.Important != nil {
		n.Important = *patch.Important
	}
	m.notes[id] = n
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.hub.broadcast(Event{Snapshot: snap})
	return nil
}

func (m *MemoryStore) DeleteNote(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.notes[id]; !ok {
		m.mu.Unlock()
		return errs.New(errs.NotFound, "note not found")
	}
	delete(m.notes, id)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.hub.broadcast(Event{Snapshot: snap})
	return nil
}

func (m *MemoryStore) BatchDeleteNotes(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	for _, id := range ids {
		delete(m.notes, id)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.hub.broadcast(Event{Snapshot: snap})
	return nil
}

func (m *MemoryStore) SubscribeNotes(ctx context.Context) (*Subscription, error) {
	ch := m.hub.subscribe()

	// Seed the new subscriber with the current set. If a broadcast raced us
	// the channel already holds a newer snapshot; keep that one.
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	select {
	case ch <- Event{Snapshot: snap}:
	default:
	}

	var once sync.Once
	sub := &Subscription{events: ch}
	sub.cancel = func() {
		once.Do(func() { m.hub.unsubscribe(ch) })
	}

	stop := context.AfterFunc(ctx, sub.Close)
	prev := sub.cancel
	sub.cancel = func() {
		stop()
		prev()
	}
	return sub, nil
}

func (m *MemoryStore) Close(context.Context) error {
	return nil
}

func (m *MemoryStore) snapshotLocked() []notes.Note {
	snap := make([]notes.Note, 0, len(m.notes))
	for _, n := range m.notes {
		snap = append(snap, n)
	}
	sortSnapshot(snap)
	return snap
}
