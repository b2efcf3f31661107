// Package archive sniffs comic containers and reads their page entries.
package archive

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatZIP
	FormatRAR
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatZIP:
		return "zip"
	case FormatRAR:
		return "rar"
	case FormatPDF:
		return "pdf"
	}
	return "unknown"
}

const (
	mimeZIP = "application/zip"
	mimeRAR = "application/x-rar-compressed"
	mimePDF = "application/pdf"
)

// DetectFormat sniffs the container signature of path. The file extension is
// ignored. Files matching none of ZIP, RAR or PDF fail with UnsupportedFormat.
func DetectFormat(path string) (Format, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return FormatUnknown, errors.WithStack(err)
	}

	// Formats built on top of a zip container (epub, docx...) are still zips.
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case m.Is(mimeZIP):
			return FormatZIP, nil
		case m.Is(mimeRAR):
			return FormatRAR, nil
		case m.Is(mimePDF):
			return FormatPDF, nil
		}
	}

	return FormatUnknown, errcodes.UnsupportedFormat(path)
}

// ComicInfoName is the fixed entry name of the metadata sidecar.
const ComicInfoName = "ComicInfo.xml"

// IsImageFile reports whether name has one of the recognized page extensions.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// IsEfficientImage reports whether name is already in the re-encoding target
// format.
func IsEfficientImage(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".webp"
}

// IsComicInfo reports whether name is the metadata sidecar entry.
func IsComicInfo(name string) bool {
	return strings.EqualFold(filepath.Base(filepath.FromSlash(name)), ComicInfoName)
}

// IsHidden reports whether the base name of path is a dotfile.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(filepath.FromSlash(path)), ".")
}
