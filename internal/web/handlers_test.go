package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glownotes/glownotes/internal/board"
	"github.com/glownotes/glownotes/internal/store"
)

// harness wires the full in-process stack over the memory backend: store,
// board, notice hub, handler, mux.
type harness struct {
	store *store.MemoryStore
	board *board.Board
	mux   *http.ServeMux
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := store.NewMemoryStore()
	hub := NewNoticeHub()
	b := board.New(st, hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()

	waitFor(t, func() bool { return b.Frame().Loaded })

	mux := http.NewServeMux()
	NewHandler(b, hub).RegisterRoutes(mux)
	return &harness{store: st, board: b, mux: mux}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

// seed creates a note through the store and waits until the board mirrors it.
func (h *harness) seed(t *testing.T, text string) string {
	t.Helper()
	id, err := h.store.CreateNote(context.Background(), text)
	require.NoError(t, err)
	waitFor(t, func() bool {
		f := h.board.Frame()
		for _, n := range f.Notes {
			if n.ID == id {
				return true
			}
		}
		return false
	})
	return id
}

func waitFor(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !pred() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateNote_AcceptedAndAppears(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/notes", `{"text":"  hello  "}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitFor(t, func() bool { return h.board.Frame().Total == 1 })
	f := h.board.Frame()
	assert.Equal(t, "hello", f.Notes[0].Text, "text should be trimmed before persisting")
}

func TestCreateNote_BlankRejected(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/notes", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, h.board.NoteCount())

	rec = h.do(t, http.MethodPost, "/api/notes", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateText(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, "original")

	rec := h.do(t, http.MethodPost, "/api/notes/"+id+"/text", `{"text":"revised"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitFor(t, func() bool {
		f := h.board.Frame()
		return len(f.Notes) == 1 && f.Notes[0].Text == "revised"
	})

	rec = h.do(t, http.MethodPost, "/api/notes/missing/text", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/notes/"+id+"/text", `{"text":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggles(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, "togglable")

	rec := h.do(t, http.MethodPost, "/api/notes/"+id+"/pin", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitFor(t, func() bool {
		f := h.board.Frame()
		return len(f.Notes) == 1 && f.Notes[0].Pinned
	})

	rec = h.do(t, http.MethodPost, "/api/notes/"+id+"/important", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitFor(t, func() bool {
		f := h.board.Frame()
		return len(f.Notes) == 1 && f.Notes[0].Important
	})

	rec = h.do(t, http.MethodPost, "/api/notes/missing/pin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNote_ScheduledRemoval(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, "doomed")

	clk := &manualClock{}
	h.board.SetClockForTests(clk)

	rec := h.do(t, http.MethodDelete, "/api/notes/"+id, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Removal is scheduled, not applied: the note is still present but marked.
	f := h.board.Frame()
	assert.Equal(t, 1, f.Total)
	assert.Equal(t, []string{id}, f.Removing)

	clk.fire()
	waitFor(t, func() bool { return h.board.Frame().Total == 0 })
}

func TestDeleteAll(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodDelete, "/api/notes", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, "empty board should be a no-op")

	h.seed(t, "one")
	h.seed(t, "two")

	rec = h.do(t, http.MethodDelete, "/api/notes", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitFor(t, func() bool { return h.board.Frame().Total == 0 })
}

func TestNoteCount(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "one")
	h.seed(t, "two")

	rec := h.do(t, http.MethodGet, "/api/notes/count", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["count"])
}

func TestViewEndpoints(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "cat video")
	h.seed(t, "dog walk")

	rec := h.do(t, http.MethodPost, "/api/view/search", `{"q":"cat"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/board", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var f board.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, "cat", f.Search)
	assert.Len(t, f.Notes, 1)
	assert.Equal(t, 2, f.Total)

	rec = h.do(t, http.MethodPost, "/api/view/sort", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var sortBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sortBody))
	assert.Equal(t, "oldest", sortBody["sort"])
}

func TestExportEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/export/txt", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, "empty board exports nothing")

	h.seed(t, "solo note")

	rec = h.do(t, http.MethodGet, "/export/txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1. solo note", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = h.do(t, http.MethodGet, "/export/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "solo note", items[0]["text"])

	rec = h.do(t, http.MethodGet, "/export/xml", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPage(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/stream")
}

func TestStream_SendsInitialFrameAndNotices(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "streamed")

	srv := httptest.NewServer(h.mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// The first event is always a full frame.
	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	first := string(buf[:n])
	assert.Contains(t, first, "event: frame")
	assert.Contains(t, first, "streamed")
}

// manualClock collects scheduled continuations and runs them on demand.
type manualClock struct {
	funcs []func()
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) {
	c.funcs = append(c.funcs, f)
}

func (c *manualClock) fire() {
	for _, f := range c.funcs {
		f()
	}
	c.funcs = nil
}
