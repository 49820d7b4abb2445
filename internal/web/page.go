package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/glownotes/glownotes/internal/obs"
)

//go:embed page.html
var pageFS embed.FS

var pageTemplate = template.Must(template.ParseFS(pageFS, "page.html"))

// PageData contains the data passed to the page template.
type PageData struct {
	Title string
}

// HandlePage serves the single page. All state arrives over the stream;
// the page ships empty.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, PageData{Title: "Glow Notes"}); err != nil {
		obs.From(r.Context()).Error("render page failed", "err", err)
	}
}
