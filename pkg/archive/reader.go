package archive

import (
	"archive/zip"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
)

// MaxEntrySize caps how much of a single entry is ever read, so a
// decompression bomb can't exhaust memory or disk.
const MaxEntrySize = 100 * 1024 * 1024

// ErrEntryTooLarge is returned instead of truncating an entry holding more
// than MaxEntrySize bytes.
var ErrEntryTooLarge = errors.Errorf("entry exceeds %d bytes", MaxEntrySize)

// Reader is an open canonical archive.
type Reader struct {
	file *os.File
	zip  *zip.Reader
}

// Open opens the zip archive at path for reading. The caller must Close it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}

	zr, err := zip.NewReader(f, stats.Size())
	// Entry names are validated by their consumers, an insecure name doesn't
	// make the whole archive unreadable.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		f.Close()
		return nil, errcodes.ArchiveIO(path, err)
	}

	return &Reader{file: f, zip: zr}, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Files returns every entry of the archive in storage order.
func (r *Reader) Files() []*zip.File {
	return r.zip.File
}

// ImageEntries returns the image entries sorted by name, which is the page
// order.
func (r *Reader) ImageEntries() []*zip.File {
	return SortedImageFiles(r.zip)
}

// ComicInfo returns the sidecar entry, or nil.
func (r *Reader) ComicInfo() *zip.File {
	for _, f := range r.zip.File {
		if IsComicInfo(f.Name) {
			return f
		}
	}
	return nil
}

// SortedImageFiles returns the image entries of zr ordered by byte-wise
// comparison of their names.
func SortedImageFiles(zr *zip.Reader) []*zip.File {
	var imageFiles []*zip.File
	for _, file := range zr.File {
		if file.FileInfo().IsDir() || !IsImageFile(file.Name) {
			continue
		}
		imageFiles = append(imageFiles, file)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return imageFiles[i].Name < imageFiles[j].Name
	})

	return imageFiles
}

// ListImageEntries returns the ordered page entry names of the archive at path.
func ListImageEntries(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	entries := r.ImageEntries()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// CountPages returns the number of page entries of the archive at path.
func CountPages(path string) (int, error) {
	names, err := ListImageEntries(path)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// ReadEntry reads the whole content of f. Entries larger than MaxEntrySize
// fail with ErrEntryTooLarge.
func ReadEntry(f *zip.File) ([]byte, error) {
	if err := CheckEntrySize(f); err != nil {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rc.Close()

	return ReadAllEntry(rc)
}

// CheckEntrySize rejects f from its header, before anything is decompressed.
func CheckEntrySize(f *zip.File) error {
	if f.UncompressedSize64 > MaxEntrySize {
		return errors.Wrap(ErrEntryTooLarge, f.Name)
	}
	return nil
}

// CopyEntry copies r to w. It fails with ErrEntryTooLarge as soon as more than
// MaxEntrySize bytes arrive, whatever the headers claimed.
func CopyEntry(w io.Writer, r io.Reader) (int64, error) {
	n, err := io.Copy(w, io.LimitReader(r, MaxEntrySize+1))
	if err != nil {
		return n, errors.WithStack(err)
	}
	if n > MaxEntrySize {
		return n, errors.WithStack(ErrEntryTooLarge)
	}
	return n, nil
}

// ReadAllEntry is CopyEntry into memory.
func ReadAllEntry(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxEntrySize+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data) > MaxEntrySize {
		return nil, errors.WithStack(ErrEntryTooLarge)
	}
	return data, nil
}
