package cbz

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
)

// HasComicInfo reports whether the archive at path carries a sidecar entry.
func HasComicInfo(path string) (bool, error) {
	r, err := archive.Open(path)
	if err != nil {
		return false, err
	}
	defer r.Close()

	return r.ComicInfo() != nil, nil
}

// ReadComicInfo returns the sidecar of the archive at path. A missing or
// undecodable sidecar yields nil without error, only an unreadable archive is
// an error.
func ReadComicInfo(path string) (*ComicInfo, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	entry := r.ComicInfo()
	if entry == nil {
		return nil, nil
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, nil
	}
	defer rc.Close()

	comicInfo, err := ParseComicInfo(rc)
	if err != nil {
		return nil, nil
	}
	return comicInfo, nil
}

// WriteComicInfo replaces the sidecar of the archive at path with comicInfo.
// Every other entry is copied unchanged and the archive is swapped in place
// only once the new one is complete.
func WriteComicInfo(path string, comicInfo *ComicInfo) error {
	data, err := comicInfo.Marshal()
	if err != nil {
		return err
	}

	r, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	tmpPath := path + ".tmp"
	destFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		destFile.Close()
		os.Remove(tmpPath) // Clean up temp file if we don't rename it
	}()

	destZip := newWriter(destFile)

	var files []*zip.File
	for _, f := range r.Files() {
		if !archive.IsComicInfo(f.Name) {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	written := false
	for _, f := range files {
		if !written && f.Name > archive.ComicInfoName {
			if err := writeZipFile(destZip, archive.ComicInfoName, data); err != nil {
				return errcodes.ArchiveIO(path, err)
			}
			written = true
		}
		if err := destZip.Copy(f); err != nil {
			return errcodes.ArchiveIO(path, errors.WithStack(err))
		}
	}
	if !written {
		if err := writeZipFile(destZip, archive.ComicInfoName, data); err != nil {
			return errcodes.ArchiveIO(path, err)
		}
	}

	if err := destZip.Close(); err != nil {
		return errcodes.ArchiveIO(path, errors.WithStack(err))
	}
	if err := destFile.Close(); err != nil {
		return errors.WithStack(err)
	}
	r.Close()

	return errors.WithStack(os.Rename(tmpPath, filepath.Clean(path)))
}
