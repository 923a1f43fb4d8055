package ingest

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one loaded source before chunking.
type Document struct {
	Source string
	Title  string
	Text   string
	// Pages holds per-page text for paginated sources; Pages[0] is page 1.
	Pages []string
}

var supportedExt = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
}

// IsURL reports whether a source should be fetched rather than read from disk.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// LoadPath reads a file, or every supported file under a directory in
// lexical order.
func LoadPath(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		doc, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && supportedExt[strings.ToLower(filepath.Ext(p))] {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)

	docs := make([]Document, 0, len(files))
	for _, f := range files {
		doc, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadFile(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExt[ext] {
		return Document{}, fmt.Errorf("unsupported file type %q: %s", ext, path)
	}
	if ext == ".pdf" {
		return loadPDF(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	name := filepath.Base(path)
	if ext == ".html" || ext == ".htm" {
		abs, _ := filepath.Abs(path)
		doc, err := extractHTML(string(raw), &url.URL{Scheme: "file", Path: abs})
		if err != nil {
			return Document{}, err
		}
		doc.Source = name
		return doc, nil
	}
	return Document{Source: name, Title: strings.TrimSuffix(name, ext), Text: string(raw)}, nil
}
