// Package cbz writes canonical comic archives and their ComicInfo sidecar.
package cbz

import (
	"archive/zip"
	"compress/flate"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
)

// Build creates the canonical archive dst from the regular files directly
// inside dir. Only page images and the sidecar are kept, hidden files and
// subdirectories are ignored, and entries are written sorted by name with the
// best deflate compression. It returns the number of pages written.
func Build(dir, dst string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errcodes.ArchiveIO(dst, errors.WithStack(err))
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || archive.IsHidden(name) {
			continue
		}
		if archive.IsImageFile(name) || archive.IsComicInfo(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	tmpPath := dst + ".tmp"
	destFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, errcodes.ArchiveIO(dst, errors.WithStack(err))
	}
	defer func() {
		destFile.Close()
		os.Remove(tmpPath) // Clean up temp file if we don't rename it
	}()

	destZip := newWriter(destFile)

	pages := 0
	for _, name := range names {
		if err := copyIntoZip(destZip, dir, name); err != nil {
			return 0, errcodes.ArchiveIO(dst, err)
		}
		if archive.IsImageFile(name) {
			pages++
		}
	}

	if err := destZip.Close(); err != nil {
		return 0, errcodes.ArchiveIO(dst, errors.WithStack(err))
	}
	if err := destFile.Close(); err != nil {
		return 0, errcodes.ArchiveIO(dst, errors.WithStack(err))
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, errcodes.ArchiveIO(dst, errors.WithStack(err))
	}

	return pages, nil
}

func newWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return zw
}

func copyIntoZip(zw *zip.Writer, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = io.Copy(w, f)
	return errors.WithStack(err)
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}
