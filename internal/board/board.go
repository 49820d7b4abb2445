// Package board holds the live view-model of the notes board: a read-only
// mirror of the stored note set, the transient view state (search, sort mode,
// in-flight markers), and the mutation coordinator that sequences optimistic
// UI state around the five backend calls.
//
// The board never retries and never lets a backend failure escape: every
// failed mutation is logged in full and surfaced to the user as a single
// generic notification.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/glownotes/glownotes/internal/errs"
	"github.com/glownotes/glownotes/internal/logutil"
	"github.com/glownotes/glownotes/internal/notes"
	"github.com/glownotes/glownotes/internal/obs"
	"github.com/glownotes/glownotes/internal/store"
)

// RemoveDelay separates the removal transition from the destructive call, so
// the UI can play an exit animation before the note truly disappears. Fixed,
// not configurable.
const RemoveDelay = 250 * time.Millisecond

// Notifier receives user-facing notifications. Success and failure texts are
// the whole user-visible error surface; diagnostics go to the log.
type Notifier interface {
	Success(message string)
	Failure(message string)
}

// Clock schedules the delete transition delay. Swapped in tests.
type Clock interface {
	AfterFunc(d time.Duration, f func())
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Frame is the render-ready view: the derived display list plus the
// transient state the page needs. It is a value snapshot, safe to hold
// across further board changes.
type Frame struct {
	Notes     []notes.Note   `json:"notes"`
	Total     int            `json:"total"`
	Search    string         `json:"search"`
	Sort      notes.SortMode `json:"sort"`
	Removing  []string       `json:"removing"`
	Adding    bool           `json:"adding"`
	Connected bool           `json:"connected"`
	Loaded    bool           `json:"loaded"`
}

// Board is the single shared notes board. All state behind mu; mutation
// operations run concurrently and touch disjoint or idempotent pieces of it.
type Board struct {
	store  store.Store
	notify Notifier
	clock  Clock
	log    *slog.Logger

	mu        sync.Mutex
	notes     []notes.Note
	search    string
	mode      notes.SortMode
	removing  map[string]struct{}
	adding    bool
	connected bool
	loaded    bool

	watchers map[chan struct{}]struct{}
}

// New creates a board over the given store.
func New(st store.Store, notify Notifier) *Board {
	return &Board{
		store:    st,
		notify:   notify,
		clock:    wallClock{},
		log:      obs.Pkg("board"),
		mode:     notes.SortNewest,
		removing: make(map[string]struct{}),
		watchers: make(map[chan struct{}]struct{}),
	}
}

// SetClockForTests overrides the delete-delay timer.
func (b *Board) SetClockForTests(c Clock) {
	b.clock = c
}

// Run consumes the live subscription until ctx is cancelled. It opens the
// single subscription of the board's lifetime; a fault flips the connected
// indicator and a later snapshot flips it back.
func (b *Board) Run(ctx context.Context) error {
	sub, err := b.store.SubscribeNotes(ctx)
	if err != nil {
		return fmt.Errorf("open live subscription: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if ev.Err != nil {
				b.log.Error("live subscription fault", "err", ev.Err)
				b.mu.Lock()
				b.connected = false
				b.loaded = true
				b.mu.Unlock()
				b.wake()
				b.notify.Failure("Connection lost. Retrying...")
				continue
			}
			b.mu.Lock()
			b.notes = ev.Snapshot
			b.connected = true
			b.loaded = true
			b.mu.Unlock()
			b.wake()
		}
	}
}

// Frame returns the current render-ready view.
func (b *Board) Frame() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	removing := make([]string, 0, len(b.removing))
	for id := range b.removing {
		removing = append(removing, id)
	}
	sort.Strings(removing)

	return Frame{
		Notes:     notes.DeriveView(b.notes, b.search, b.mode),
		Total:     len(b.notes),
		Search:    b.search,
		Sort:      b.mode,
		Removing:  removing,
		Adding:    b.adding,
		Connected: b.connected,
		Loaded:    b.loaded,
	}
}

// NoteCount returns the size of the raw (unfiltered) set.
func (b *Board) NoteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notes)
}

// SetSearch replaces the search text.
func (b *Board) SetSearch(q string) {
	b.mu.Lock()
	b.search = q
	b.mu.Unlock()
	b.wake()
}

// CycleSort advances the sort mode one step and returns the new mode.
func (b *Board) CycleSort() notes.SortMode {
	b.mu.Lock()
	b.mode = b.mode.Cycle()
	mode := b.mode
	b.mu.Unlock()
	b.wake()
	return mode
}

// AddNote validates and persists a new note. Blank text is the only error
// returned to the caller; backend failures are swallowed and notified.
// There is no optimistic insert: the note appears when the subscription
// echoes the committed document.
func (b *Board) AddNote(ctx context.Context, text string) error {
	trimmed, err := notes.CleanText(text)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "note text is empty", err)
	}

	b.setAdding(true)
	_, err = b.store.CreateNote(ctx, trimmed)
	b.setAdding(false)

	if err != nil {
		b.log.Error("create note failed", "err", err, "text", logutil.TruncateForLog(trimmed, 80))
		b.notify.Failure("Failed to add note")
		return nil
	}
	b.notify.Success("Note added")
	return nil
}

// UpdateNoteText replaces a note's text. Blank text and unknown ids are
// returned to the caller; backend failures are swallowed and notified.
func (b *Board) UpdateNoteText(ctx context.Context, id, text string) error {
	trimmed, err := notes.CleanText(text)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "note text is empty", err)
	}
	if _, ok := b.findNote(id); !ok {
		return errs.New(errs.NotFound, "note not found")
	}

	if err := b.store.UpdateNote(ctx, id, notes.NotePatch{Text: &trimmed}); err != nil {
		b.log.Error("update note failed", "err", err, "note_id", id)
		b.notify.Failure("Failed to update note")
		return nil
	}
	b.notify.Success("Note updated")
	return nil
}

// TogglePin flips a note's pinned flag, updating only that field.
func (b *Board) TogglePin(ctx context.Context, id string) error {
	n, ok := b.findNote(id)
	if !ok {
		return errs.New(errs.NotFound, "note not found")
	}

	pinned := !n.Pinned
	if err := b.store.UpdateNote(ctx, id, notes.NotePatch{Pinned: &pinned}); err != nil {
		b.log.Error("toggle pin failed", "err", err, "note_id", id)
		b.notify.Failure("Failed to update note")
		return nil
	}
	if pinned {
		b.notify.Success("Note pinned")
	} else {
		b.notify.Success("Note unpinned")
	}
	return nil
}

// ToggleImportant flips a note's important flag, updating only that field.
func (b *Board) ToggleImportant(ctx context.Context, id string) error {
	n, ok := b.findNote(id)
	if !ok {
		return errs.New(errs.NotFound, "note not found")
	}

	important := !n.Important
	if err := b.store.UpdateNote(ctx, id, notes.NotePatch{Important: &important}); err != nil {
		b.log.Error("toggle important failed", "err", err, "note_id", id)
		b.notify.Failure("Failed to update note")
		return nil
	}
	if important {
		b.notify.Success("Marked as important")
	} else {
		b.notify.Success("Removed importance")
	}
	return nil
}

// RemoveNote marks a note as removing immediately and issues the backend
// delete only after RemoveDelay, so the exit transition can play out. The
// marker is cleared on success and failure alike; a note must never look
// permanently stuck.
func (b *Board) RemoveNote(_ context.Context, id string) error {
	if _, ok := b.findNote(id); !ok {
		return errs.New(errs.NotFound, "note not found")
	}

	b.mu.Lock()
	if _, already := b.removing[id]; already {
		// A second click while the transition runs; one delete is enough.
		b.mu.Unlock()
		return nil
	}
	b.removing[id] = struct{}{}
	b.mu.Unlock()
	b.wake()

	b.clock.AfterFunc(RemoveDelay, func() {
		// The request that scheduled this is long gone by the time the
		// timer fires.
		err := b.store.DeleteNote(context.Background(), id)

		b.mu.Lock()
		delete(b.removing, id)
		b.mu.Unlock()
		b.wake()

		if err != nil {
			b.log.Error("delete note failed", "err", err, "note_id", id)
			b.notify.Failure("Failed to delete note")
			return
		}
		b.notify.Success("Note deleted")
	})
	return nil
}

// RemoveAll deletes every currently-known note in one atomic batch. No-op
// when the board is empty. The batch either removes them all or none; there
// is no partial-success report.
func (b *Board) RemoveAll(ctx context.Context) error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.notes))
	for _, n := range b.notes {
		ids = append(ids, n.ID)
	}
	b.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	if err := b.store.BatchDeleteNotes(ctx, ids); err != nil {
		b.log.Error("batch delete failed", "err", err, "count", len(ids))
		b.notify.Failure("Failed to delete all notes")
		return nil
	}
	b.notify.Success(fmt.Sprintf("All %d notes deleted", len(ids)))
	return nil
}

// Export renders the current on-screen list. ok=false when there is nothing
// to export; no document, no download, no notification.
func (b *Board) Export(kind notes.ExportKind) (notes.ExportDocument, bool) {
	b.mu.Lock()
	view := notes.DeriveView(b.notes, b.search, b.mode)
	b.mu.Unlock()

	doc, ok := notes.Export(view, kind)
	if !ok {
		return notes.ExportDocument{}, false
	}
	switch kind {
	case notes.ExportText:
		b.notify.Success("Notes exported as TXT")
	case notes.ExportJSON:
		b.notify.Success("Notes exported as JSON")
	}
	return doc, true
}

// Watch registers a wakeup channel that receives a signal after every state
// change. Signals coalesce; callers re-read Frame on each wakeup.
func (b *Board) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

func (b *Board) wake() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *Board) setAdding(v bool) {
	b.mu.Lock()
	b.adding = v
	b.mu.Unlock()
	b.wake()
}

func (b *Board) findNote(id string) (notes.Note, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range b.notes {
		if n.ID == id {
			return n, true
		}
	}
	return notes.Note{}, false
}
