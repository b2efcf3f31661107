// Package testgen provides utilities for generating comic test files (CBZ, CBR,
// PDF) with configurable pages and metadata.
package testgen

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Page describes one generated page image.
type Page struct {
	Name   string // entry name, defaults to "%03d.<ext>"
	Width  int    // defaults to 100
	Height int    // defaults to 100
	Format string // "png", "jpeg", "gif" or "webp", defaults to the archive format
}

// Entry is a raw file stored as is in a generated archive.
type Entry struct {
	Name string
	Data []byte
}

// CBZOptions configures the generated CBZ file.
type CBZOptions struct {
	PageCount    int    // defaults to 3, ignored when Pages is set
	ImageFormat  string // "png", "jpeg", "gif" or "webp", defaults to "png"
	Pages        []Page
	Dirs         []string // explicit directory entries, e.g. "chapter1/"
	Extra        []Entry
	HasComicInfo bool // whether to include ComicInfo.xml
	Title        string
	Series       string
	Volume       int
	Writer       string
	Penciller    string
	Colorist     string
	Editor       string
	ISBN         string
}

// CBROptions configures the generated CBR file.
type CBROptions struct {
	PageCount   int    // defaults to 3, ignored when Pages is set
	ImageFormat string // defaults to "jpeg"
	Pages       []Page
	Dir         string // when set, pages are stored below this directory
	Extra       []Entry
}

// PDFOptions configures the generated PDF file.
type PDFOptions struct {
	PageCount int // defaults to 3
	Width     int // defaults to 100
	Height    int // defaults to 140
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// resolvePages expands the page options of a generator into named, encoded
// page entries.
func resolvePages(t *testing.T, pages []Page, count int, format string) []Entry {
	t.Helper()

	if len(pages) == 0 {
		if count <= 0 {
			count = 3
		}
		pages = make([]Page, count)
	}

	entries := make([]Entry, 0, len(pages))
	for i, p := range pages {
		if p.Format == "" {
			p.Format = format
		}
		if p.Width <= 0 {
			p.Width = 100
		}
		if p.Height <= 0 {
			p.Height = 100
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("%03d.%s", i, imageExtension(p.Format))
		}
		entries = append(entries, Entry{Name: p.Name, Data: GenerateImage(t, p.Format, p.Width, p.Height)})
	}
	return entries
}

// ReadFile reads and returns the contents of a file.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return data
}
