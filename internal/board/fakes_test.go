package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glownotes/glownotes/internal/notes"
	"github.com/glownotes/glownotes/internal/store"
)

// fakeStore records every call and lets tests inject failures. Its events
// channel stands in for the live subscription.
type fakeStore struct {
	events chan store.Event

	mu         sync.Mutex
	createErr  error
	updateErr  error
	deleteErr  error
	batchErr   error
	createGate chan struct{} // when non-nil, CreateNote blocks until closed

	createCalls []string
	updateCalls []updateCall
	deleteCalls []string
	batchCalls  [][]string
}

type updateCall struct {
	id    string
	patch notes.NotePatch
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(chan store.Event, 16)}
}

func (f *fakeStore) CreateNote(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, text)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "new-id", nil
}

func (f *fakeStore) UpdateNote(_ context.Context, id string, patch notes.NotePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, updateCall{id: id, patch: patch})
	return f.updateErr
}

func (f *fakeStore) DeleteNote(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeStore) BatchDeleteNotes(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), ids...))
	return f.batchErr
}

func (f *fakeStore) SubscribeNotes(context.Context) (*store.Subscription, error) {
	return store.NewSubscription(f.events, func() {}), nil
}

func (f *fakeStore) Close(context.Context) error {
	return nil
}

func (f *fakeStore) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createCalls)
}

func (f *fakeStore) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleteCalls)
}

func (f *fakeStore) lastUpdate(t *testing.T) updateCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateCalls) == 0 {
		t.Fatal("no update calls recorded")
	}
	return f.updateCalls[len(f.updateCalls)-1]
}

// fakeClock captures scheduled continuations so tests decide when the
// delete-transition delay elapses.
type fakeClock struct {
	mu        sync.Mutex
	scheduled []scheduledCall
}

type scheduledCall struct {
	d time.Duration
	f func()
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	c.scheduled = append(c.scheduled, scheduledCall{d: d, f: f})
	c.mu.Unlock()
}

// Fire runs every pending continuation synchronously.
func (c *fakeClock) Fire() {
	c.mu.Lock()
	pending := c.scheduled
	c.scheduled = nil
	c.mu.Unlock()
	for _, call := range pending {
		call.f()
	}
}

func (c *fakeClock) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scheduled)
}

func (c *fakeClock) pendingDelay(t *testing.T) time.Duration {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.scheduled) == 0 {
		t.Fatal("no scheduled continuation")
	}
	return c.scheduled[0].d
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	n.successes = append(n.successes, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) Failure(message string) {
	n.mu.Lock()
	n.failures = append(n.failures, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) successList() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

func (n *recordingNotifier) failureList() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failures...)
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes) + len(n.failures)
}

// waitFrame polls until the predicate holds; the Run loop and notifications
// are asynchronous.
func waitFrame(t *testing.T, b *Board, pred func(Frame) bool) Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f := b.Frame()
		if pred(f) {
			return f
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for frame, last: %+v", f)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFailure(t *testing.T, n *recordingNotifier, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		for _, msg := range n.failureList() {
			if msg == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for failure %q, got %v", want, n.failureList())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// newTestBoard starts a board over a fake store, pushes the seed snapshot,
// and waits until the board has loaded it.
func newTestBoard(t *testing.T, seed []notes.Note) (*Board, *fakeStore, *recordingNotifier, *fakeClock) {
	t.Helper()

	fs := newFakeStore()
	rec := &recordingNotifier{}
	clk := &fakeClock{}

	b := New(fs, rec)
	b.SetClockForTests(clk)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = b.Run(ctx)
	}()

	fs.events <- store.Event{Snapshot: seed}
	waitFrame(t, b, func(f Frame) bool { return f.Loaded && f.Total == len(seed) })
	return b, fs, rec, clk
}

func seedNotes(texts ...string) []notes.Note {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]notes.Note, 0, len(texts))
	for i, text := range texts {
		ts := base.Add(time.Duration(len(texts)-i) * time.Minute)
		out = append(out, notes.Note{ID: text + "-id", Text: text, CreatedAt: &ts})
	}
	return out
}
