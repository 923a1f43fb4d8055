package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text page by page. Pages without a content
// dictionary keep an empty slot so page numbers stay aligned.
func loadPDF(path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Document{}, fmt.Errorf("pdf %s page %d: %w", path, i, err)
		}
		pages = append(pages, text)
	}
	name := filepath.Base(path)
	return Document{
		Source: name,
		Title:  strings.TrimSuffix(name, filepath.Ext(name)),
		Text:   strings.Join(pages, "\n\n"),
		Pages:  pages,
	}, nil
}
