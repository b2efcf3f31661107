package libraries

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/config"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
)

const isbnCoversDirName = "isbn"

// Resolver maps library and comic records to filesystem locations. The path
// methods are pure; only the Ensure* methods touch the filesystem.
type Resolver struct {
	cfg *config.Config
}

func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// RootPath is the directory holding every library.
func (r *Resolver) RootPath() string {
	return filepath.Clean(r.cfg.LibrariesDirRootPath)
}

func (r *Resolver) LibraryPath(library *models.Library) string {
	return filepath.Join(r.RootPath(), strings.Trim(library.RelPath, `/\`))
}

// ComicPath returns the absolute path of the comic's archive. An absolute
// EbookPath (a comic still being processed) is returned unchanged.
func (r *Resolver) ComicPath(library *models.Library, comic *models.Comic) string {
	if filepath.IsAbs(comic.EbookPath) {
		return comic.EbookPath
	}
	return filepath.Join(r.LibraryPath(library), comic.EbookPath)
}

// RelativeToLibrary converts an absolute path inside the library into the
// relative form stored in EbookPath.
func (r *Resolver) RelativeToLibrary(library *models.Library, path string) (string, error) {
	libPath := r.LibraryPath(library)
	rel, err := filepath.Rel(libPath, path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errcodes.SecurityViolation(path, libPath)
	}
	return rel, nil
}

// ErrorsDir is the quarantine directory of a library.
func (r *Resolver) ErrorsDir(library *models.Library) string {
	return filepath.Join(r.LibraryPath(library), r.cfg.ErrorsDirName)
}

func (r *Resolver) UploadDir() string {
	return filepath.Clean(r.cfg.FileUploadDirRootPath)
}

func (r *Resolver) CoversDir() string {
	return filepath.Clean(r.cfg.CoversDirRootPath)
}

// IsbnCoversDir holds the pages extracted while looking for an ISBN.
func (r *Resolver) IsbnCoversDir() string {
	return filepath.Join(r.CoversDir(), isbnCoversDirName)
}

// EnsureDirs creates the directories shared by every library.
func (r *Resolver) EnsureDirs() error {
	for _, dir := range []string{r.RootPath(), r.UploadDir(), r.CoversDir(), r.IsbnCoversDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	}
	return nil
}

// EnsureLibraryDirs creates the library directory and its quarantine
// directory.
func (r *Resolver) EnsureLibraryDirs(library *models.Library) error {
	for _, dir := range []string{r.LibraryPath(library), r.ErrorsDir(library)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	}
	return nil
}
