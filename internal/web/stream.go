package web

import (
	"encoding/json"
	"net/http"

	"github.com/glownotes/glownotes/internal/logutil"
	"github.com/glownotes/glownotes/internal/obs"
)

// HandleStream serves the live event stream. Every wakeup sends the whole
// current frame ("frame" events, full replacement, never diffs); mutation
// outcomes arrive as "notice" events. The connection lives until the client
// goes away.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ctx := obs.WithConnID(r.Context(), obs.NewConnID())
	log := obs.From(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	wake, cancelWake := h.board.Watch()
	defer cancelWake()
	noticeCh, cancelNotices := h.notices.Subscribe()
	defer cancelNotices()

	log.Debug("stream opened", "headers", logutil.FormatHeadersForLog(r.Header))
	defer log.Debug("stream closed")

	// First frame immediately, so a reconnecting page repaints without
	// waiting for a state change.
	if err := writeEvent(w, "frame", h.board.Frame()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			if err := writeEvent(w, "frame", h.board.Frame()); err != nil {
				return
			}
			flusher.Flush()
		case n, open := <-noticeCh:
			if !open {
				return
			}
			if err := writeEvent(w, "notice", n); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE event with a JSON payload.
func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
