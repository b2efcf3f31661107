// Package cbzpages extracts single pages, covers included, out of canonical
// archives.
package cbzpages

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
	"github.com/slucky31/mycomicsmanager-api/pkg/pageimage"
)

// CoverIndex is the page used as cover.
const CoverIndex = 0

// Extractor writes page images of canonical archives to disk.
type Extractor struct {
	quality int
}

// NewExtractor returns an Extractor re-encoding cropped covers with the given
// lossy quality.
func NewExtractor(quality int) *Extractor {
	return &Extractor{quality: quality}
}

// PageFileName returns "<comicID>-<index><ext>".
func PageFileName(comicID, index int, ext string) string {
	return fmt.Sprintf("%d-%d%s", comicID, index, strings.ToLower(ext))
}

// ExtractPage writes the page at index to destDir as "<comicID>-<index><ext>"
// and returns its path. An existing file at that path is replaced.
func (e *Extractor) ExtractPage(ctx context.Context, archivePath string, comicID, index int, destDir string) (string, error) {
	r, err := archive.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	entries := r.ImageEntries()
	if index < 0 || index >= len(entries) {
		return "", errcodes.IndexOutOfRange(index, len(entries))
	}
	entry := entries[index]

	// Flattening never produces such names, but the archive may come from
	// anywhere.
	if _, err := archive.SafeJoin(destDir, entry.Name); err != nil {
		return "", err
	}

	destPath, err := pagePath(destDir, PageFileName(comicID, index, filepath.Ext(entry.Name)))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.WithStack(err)
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return "", errors.WithStack(err)
	}
	if err := writeEntry(entry, destPath); err != nil {
		if errors.Is(err, archive.ErrEntryTooLarge) {
			return "", errcodes.ArchiveIO(archivePath, err)
		}
		return "", err
	}

	logger.FromContext(ctx).Debug("page extracted", logger.Data{"archive": archivePath, "index": index, "path": destPath})
	return destPath, nil
}

// ExtractCover extracts the cover page and, for landscape cover types, keeps
// only the matching half of the spread.
func (e *Extractor) ExtractCover(ctx context.Context, archivePath string, comicID int, coverType, destDir string) (string, error) {
	path, err := e.ExtractPage(ctx, archivePath, comicID, CoverIndex, destDir)
	if err != nil {
		return "", err
	}

	var side pageimage.Side
	switch coverType {
	case models.CoverTypeLandscapeLeft:
		side = pageimage.LeftHalf
	case models.CoverTypeLandscapeRight:
		side = pageimage.RightHalf
	default:
		return path, nil
	}

	img, _, err := pageimage.DecodeFile(path)
	if err != nil {
		return "", err
	}
	if err := pageimage.SaveFile(path, pageimage.CropHalf(img, side), e.quality); err != nil {
		return "", err
	}

	logger.FromContext(ctx).Debug("cover cropped", logger.Data{"path": path, "cover_type": coverType})
	return path, nil
}

// pagePath joins name to dir and makes sure the cleaned result stays in dir.
func pagePath(dir, name string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	destPath := filepath.Join(absDir, name)
	if filepath.Dir(destPath) != absDir {
		return "", errcodes.SecurityViolation(destPath, dir)
	}
	return destPath, nil
}

func writeEntry(entry *zip.File, destPath string) error {
	if err := archive.CheckEntrySize(entry); err != nil {
		return err
	}

	r, err := entry.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer outFile.Close()

	if _, err := archive.CopyEntry(outFile, r); err != nil {
		outFile.Close()
		os.Remove(destPath)
		return err
	}

	return errors.WithStack(outFile.Close())
}
