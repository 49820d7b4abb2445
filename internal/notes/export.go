package notes

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExportKind selects the export document format.
type ExportKind string

const (
	ExportText ExportKind = "txt"
	ExportJSON ExportKind = "json"
)

// ParseExportKind parses an export kind from its wire form.
func ParseExportKind(s string) (ExportKind, error) {
	k := ExportKind(strings.ToLower(strings.TrimSpace(s)))
	if k != ExportText && k != ExportJSON {
		return "", fmt.Errorf("unknown export kind: %q", s)
	}
	return k, nil
}

// ExportDocument is a rendered export ready for download.
type ExportDocument struct {
	Content  string
	Filename string
	MIMEType string
}

// exportedNote is the JSON export shape. IDs are backend bookkeeping and are
// deliberately omitted; CreatedAt is RFC 3339 or null when uncommitted.
type exportedNote struct {
	Text      string  `json:"text"`
	Pinned    bool    `json:"pinned"`
	Important bool    `json:"important"`
	CreatedAt *string `json:"createdAt"`
}

// Export renders the given notes, in the order given (callers pass the
// current derived view so the export reflects whatever is on screen).
// Returns ok=false, and no document, when the list is empty.
func Export(view []Note, kind ExportKind) (ExportDocument, bool) {
	if len(view) == 0 {
		return ExportDocument{}, false
	}

	switch kind {
	case ExportText:
		blocks := make([]string, 0, len(view))
		for i, n := range view {
			var b strings.Builder
			fmt.Fprintf(&b, "%d. %s", i+1, n.Text)
			if n.Pinned {
				b.WriteString(" [PINNED]")
			}
			if n.Important {
				b.WriteString(" [IMPORTANT]")
			}
			blocks = append(blocks, b.String())
		}
		return ExportDocument{
			Content:  strings.Join(blocks, "\n\n"),
			Filename: "notes.txt",
			MIMEType: "text/plain",
		}, true

	case ExportJSON:
		items := make([]exportedNote, 0, len(view))
		for _, n := range view {
			item := exportedNote{
				Text:      n.Text,
				Pinned:    n.Pinned,
				Important: n.Important,
			}
			if n.CreatedAt != nil {
				ts := n.CreatedAt.UTC().Format(time.RFC3339)
				item.CreatedAt = &ts
			}
			items = append(items, item)
		}
		content, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			// Only plain strings and bools go in; Marshal cannot fail.
			return ExportDocument{}, false
		}
		return ExportDocument{
			Content:  string(content),
			Filename: "notes.json",
			MIMEType: "application/json",
		}, true

	default:
		return ExportDocument{}, false
	}
}
