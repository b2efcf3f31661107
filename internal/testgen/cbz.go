package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// GenerateCBZ creates a CBZ file at the specified path with the given options.
// The generated CBZ contains:
// - explicit directory entries (Dirs)
// - ComicInfo.xml (if HasComicInfo is true)
// - page images (000.png, 001.png, etc. unless named)
// - raw extra entries.
func GenerateCBZ(t *testing.T, dir, filename string, opts CBZOptions) string {
	t.Helper()

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create CBZ file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	format := opts.ImageFormat
	if format == "" {
		format = "png"
	}

	for _, d := range opts.Dirs {
		if _, err := zw.Create(d); err != nil {
			t.Fatalf("failed to write directory %s: %v", d, err)
		}
	}

	pages := resolvePages(t, opts.Pages, opts.PageCount, format)

	if opts.HasComicInfo {
		comicInfo := generateComicInfo(opts, len(pages))
		if err := writeZipFile(zw, "ComicInfo.xml", []byte(comicInfo)); err != nil {
			t.Fatalf("failed to write ComicInfo.xml: %v", err)
		}
	}

	for _, p := range append(pages, opts.Extra...) {
		if err := writeZipFile(zw, p.Name, p.Data); err != nil {
			t.Fatalf("failed to write entry %s: %v", p.Name, err)
		}
	}

	return path
}

// GenerateOversizedCBZ creates a CBZ holding a single entry of size zero
// bytes. Zeros deflate well, so the archive itself stays small.
func GenerateOversizedCBZ(t *testing.T, dir, filename, entryName string, size int64) string {
	t.Helper()

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create CBZ file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(entryName)
	if err != nil {
		t.Fatalf("failed to write entry %s: %v", entryName, err)
	}

	chunk := make([]byte, 1024*1024)
	for written := int64(0); written < size; {
		n := int64(len(chunk))
		if size-written < n {
			n = size - written
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			t.Fatalf("failed to write entry %s: %v", entryName, err)
		}
		written += n
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close CBZ file: %v", err)
	}
	return path
}

// ZipEntries returns the entry names of a zip archive in storage order.
func ZipEntries(t *testing.T, path string) []string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open zip %s: %v", path, err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadZipEntry returns the content of the named entry of a zip archive.
func ReadZipEntry(t *testing.T, path, name string) []byte {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open zip %s: %v", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", name, err)
		}
		defer rc.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("failed to read entry %s: %v", name, err)
		}
		return buf.Bytes()
	}

	t.Fatalf("entry %s not found in %s", name, path)
	return nil
}

func generateComicInfo(opts CBZOptions, pageCount int) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ComicInfo>
`)

	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("  <Title>%s</Title>\n", escapeXML(opts.Title)))
	}
	if opts.Series != "" {
		buf.WriteString(fmt.Sprintf("  <Series>%s</Series>\n", escapeXML(opts.Series)))
	}
	if opts.Volume > 0 {
		buf.WriteString(fmt.Sprintf("  <Volume>%d</Volume>\n", opts.Volume))
	}
	if opts.Writer != "" {
		buf.WriteString(fmt.Sprintf("  <Writer>%s</Writer>\n", escapeXML(opts.Writer)))
	}
	if opts.Penciller != "" {
		buf.WriteString(fmt.Sprintf("  <Penciller>%s</Penciller>\n", escapeXML(opts.Penciller)))
	}
	if opts.Colorist != "" {
		buf.WriteString(fmt.Sprintf("  <Colorist>%s</Colorist>\n", escapeXML(opts.Colorist)))
	}
	if opts.Editor != "" {
		buf.WriteString(fmt.Sprintf("  <Editor>%s</Editor>\n", escapeXML(opts.Editor)))
	}
	if opts.ISBN != "" {
		buf.WriteString(fmt.Sprintf("  <GTIN>%s</GTIN>\n", escapeXML(opts.ISBN)))
	}

	buf.WriteString(fmt.Sprintf("  <PageCount>%d</PageCount>\n", pageCount))
	buf.WriteString("</ComicInfo>")

	return buf.String()
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
