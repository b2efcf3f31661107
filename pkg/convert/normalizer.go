// Package convert turns uploaded comic files (zip, rar or pdf) into canonical
// archives.
package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/cbz"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/fileutils"
)

const (
	rawDirName  = "raw"
	flatDirName = "archive"
)

// Normalizer converts source containers into canonical archives.
type Normalizer struct {
	quarantine  *fileutils.Quarantine
	scratchRoot string
}

// NewNormalizer returns a Normalizer quarantining broken sources with q.
// Scratch directories are created below scratchRoot, or the system temp
// directory when it is empty.
func NewNormalizer(q *fileutils.Quarantine, scratchRoot string) *Normalizer {
	return &Normalizer{quarantine: q, scratchRoot: scratchRoot}
}

// Normalize converts src into "<src without extension>.cbz" and deletes the
// original. The returned path is the canonical archive.
//
// Sources that are neither zip, rar nor pdf fail with UnsupportedFormat and are
// left untouched. Sources that can't be extracted or rebuilt are quarantined
// and fail with ArchiveIO.
func (n *Normalizer) Normalize(ctx context.Context, src string) (string, error) {
	log := logger.FromContext(ctx)

	format, err := archive.DetectFormat(src)
	if err != nil {
		return "", err
	}

	scratch, err := NewScratchDir(n.scratchRoot)
	if err != nil {
		return "", err
	}
	defer RemoveScratchDir(ctx, scratch)

	log.Info("normalizing comic", logger.Data{"source": src, "format": format.String(), "scratch": scratch})

	flatDir, err := Extract(ctx, format, src, scratch)
	if err != nil {
		return "", n.fail(ctx, src, err)
	}

	built := filepath.Join(scratch, "canonical.cbz")
	pages, err := cbz.Build(flatDir, built)
	if err != nil {
		return "", n.fail(ctx, src, err)
	}

	dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".cbz"
	if dst != src {
		dst = fileutils.UniqueFilepath(dst)
	}
	if err := fileutils.MoveFile(built, dst); err != nil {
		return "", errcodes.ComicIO(built, err)
	}
	if dst != src {
		if err := os.Remove(src); err != nil {
			log.Err(err).Warn("failed to delete normalized source", logger.Data{"source": src})
		}
	}

	log.Info("comic normalized", logger.Data{"source": src, "destination": dst, "pages": pages})
	return dst, nil
}

func (n *Normalizer) fail(ctx context.Context, src string, cause error) error {
	log := logger.FromContext(ctx)
	log.Err(cause).Error("failed to normalize comic", logger.Data{"source": src})

	if _, err := n.quarantine.Quarantine(ctx, src); err != nil {
		log.Err(err).Warn("failed to quarantine comic", logger.Data{"source": src})
	}
	if errcodes.IsArchiveIO(cause) {
		return cause
	}
	return errcodes.ArchiveIO(src, cause)
}

// NewScratchDir creates a uniquely named scratch directory below root, or below
// the system temp directory when root is empty.
func NewScratchDir(root string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", errors.WithStack(err)
	}

	dir := filepath.Join(root, "comics-"+uuid.NewString())
	if err := os.Mkdir(dir, 0700); err != nil {
		return "", errors.WithStack(err)
	}
	return dir, nil
}

// RemoveScratchDir deletes a scratch directory. Failures are only logged.
func RemoveScratchDir(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to remove scratch directory", logger.Data{"dir": dir})
	}
}

// Extract unpacks src below scratch and flattens the result: every file ends up
// directly inside the returned directory, under its base name with a lower
// cased extension, and dotfiles are dropped.
func Extract(ctx context.Context, format archive.Format, src, scratch string) (string, error) {
	rawDir := filepath.Join(scratch, rawDirName)
	flatDir := filepath.Join(scratch, flatDirName)

	if err := archive.Extract(ctx, format, src, rawDir); err != nil {
		return "", err
	}
	if err := flatten(ctx, rawDir, flatDir); err != nil {
		return "", err
	}
	if err := os.RemoveAll(rawDir); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to remove raw extraction directory", logger.Data{"dir": rawDir})
	}

	return flatDir, nil
}

func flatten(ctx context.Context, rawDir, flatDir string) error {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(flatDir, 0755); err != nil {
		return errors.WithStack(err)
	}

	return filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if archive.IsHidden(path) {
			log.Debug("dropping hidden file", logger.Data{"path": path})
			return nil
		}

		target := filepath.Join(flatDir, FlatName(d.Name()))
		target = uniqueFlatPath(target)
		return errors.WithStack(os.Rename(path, target))
	})
}

// FlatName returns the name a file gets once flattened: its base name with a
// lower cased extension.
func FlatName(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + strings.ToLower(ext)
}

// uniqueFlatPath keeps same-named pages of different directories apart:
// "001.jpg", "001-1.jpg", "001-2.jpg"...
func uniqueFlatPath(path string) string {
	if !fileutils.Exists(path) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if !fileutils.Exists(candidate) {
			return candidate
		}
	}
}
