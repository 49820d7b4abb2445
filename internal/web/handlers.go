// Package web provides the HTTP surface of the notes board: the single
// page, the JSON API the page mutates through, and the live event stream.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/glownotes/glownotes/internal/board"
	"github.com/glownotes/glownotes/internal/errs"
	"github.com/glownotes/glownotes/internal/notes"
)

// Handler serves the page, the JSON API, and the event stream.
type Handler struct {
	board   *board.Board
	notices *NoticeHub
}

// NewHandler creates a handler over the shared board. The hub must be the
// same one the board notifies into.
func NewHandler(b *board.Board, notices *NoticeHub) *Handler {
	return &Handler{board: b, notices: notices}
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandlePage)

	mux.HandleFunc("GET /api/board", h.HandleBoard)
	mux.HandleFunc("GET /api/stream", h.HandleStream)

	mux.HandleFunc("POST /api/notes", h.HandleCreateNote)
	mux.HandleFunc("POST /api/notes/{id}/text", h.HandleUpdateText)
	mux.HandleFunc("POST /api/notes/{id}/pin", h.HandleTogglePin)
	mux.HandleFunc("POST /api/notes/{id}/important", h.HandleToggleImportant)
	mux.HandleFunc("DELETE /api/notes/{id}", h.HandleDeleteNote)
	mux.HandleFunc("DELETE /api/notes", h.HandleDeleteAll)
	mux.HandleFunc("GET /api/notes/count", h.HandleNoteCount)

	mux.HandleFunc("POST /api/view/search", h.HandleSetSearch)
	mux.HandleFunc("POST /api/view/sort", h.HandleCycleSort)

	mux.HandleFunc("GET /export/{kind}", h.HandleExport)
}

// HandleBoard returns the current frame.
func (h *Handler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Frame())
}

type textRequest struct {
	Text string `json:"text"`
}

// HandleCreateNote accepts a new note. The note itself arrives on the
// stream once the backend echoes it; the response only acknowledges the
// submission.
func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := h.board.AddNote(r.Context(), req.Text); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleUpdateText replaces a note's text.
func (h *Handler) HandleUpdateText(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := h.board.UpdateNoteText(r.Context(), id, req.Text); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleTogglePin flips a note's pinned flag.
func (h *Handler) HandleTogglePin(w http.ResponseWriter, r *http.Request) {
	if err := h.board.TogglePin(r.Context(), r.PathValue("id")); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleToggleImportant flips a note's important flag.
func (h *Handler) HandleToggleImportant(w http.ResponseWriter, r *http.Request) {
	if err := h.board.ToggleImportant(r.Context(), r.PathValue("id")); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleDeleteNote schedules a note's removal. The 202 means the exit
// transition started, not that the backend delete happened.
func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.board.RemoveNote(r.Context(), r.PathValue("id")); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleDeleteAll deletes every note in one batch. 204 when the board is
// already empty.
func (h *Handler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if h.board.NoteCount() == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.board.RemoveAll(r.Context()); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleNoteCount returns the raw note count, for the delete-all
// confirmation dialog.
func (h *Handler) HandleNoteCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": h.board.NoteCount()})
}

type searchRequest struct {
	Q string `json:"q"`
}

// HandleSetSearch replaces the shared search string.
func (h *Handler) HandleSetSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	h.board.SetSearch(req.Q)
	w.WriteHeader(http.StatusAccepted)
}

// HandleCycleSort advances the sort mode and returns the new one.
func (h *Handler) HandleCycleSort(w http.ResponseWriter, r *http.Request) {
	mode := h.board.CycleSort()
	writeJSON(w, http.StatusAccepted, map[string]notes.SortMode{"sort": mode})
}

// HandleExport downloads the current on-screen list as a file. 204 when
// there is nothing to export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := notes.ParseExportKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown export format")
		return
	}

	doc, ok := h.board.Export(kind)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", doc.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc.Content))
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeCodedError maps a coded error to its HTTP status using the public
// message only; internals stay in the log.
func writeCodedError(w http.ResponseWriter, err error) {
	writeError(w, errs.HTTPStatus(errs.CodeOf(err)), errs.MessageOf(err))
}
