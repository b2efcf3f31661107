package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nwaples/rardecode/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/pageimage"
)

var disablePDFConfigDir sync.Once

// Extract unpacks every file of the container at src below dstDir, keeping the
// relative paths stored in the container. Entries that would resolve outside
// dstDir fail with SecurityViolation.
func Extract(ctx context.Context, format Format, src, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return errors.WithStack(err)
	}

	switch format {
	case FormatZIP:
		return extractZIP(ctx, src, dstDir)
	case FormatRAR:
		return extractRAR(ctx, src, dstDir)
	case FormatPDF:
		return extractPDF(ctx, src, dstDir)
	}
	return errcodes.UnsupportedFormat(src)
}

func extractZIP(ctx context.Context, src, dstDir string) error {
	r, err := Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.Files() {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		if err := extractZIPEntry(f, dstDir); err != nil {
			return err
		}
	}

	return nil
}

func extractZIPEntry(f *zip.File, dstDir string) error {
	dst, err := SafeJoin(dstDir, f.Name)
	if err != nil {
		return err
	}
	if err := CheckEntrySize(f); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open entry %s", f.Name)
	}
	defer rc.Close()

	return writeEntry(dst, rc)
}

func extractRAR(ctx context.Context, src, dstDir string) error {
	rc, err := rardecode.OpenReader(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer rc.Close()

	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		header, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.WithStack(err)
		}
		if header.IsDir {
			continue
		}
		if !header.UnKnownSize && header.UnPackedSize > MaxEntrySize {
			return errors.Wrap(ErrEntryTooLarge, header.Name)
		}

		dst, err := SafeJoin(dstDir, header.Name)
		if err != nil {
			return err
		}
		if err := writeEntry(dst, rc); err != nil {
			return err
		}
	}
}

// extractPDF keeps only the raster images embedded in the document. Each one is
// stored as JPEG and named after its page: P00001.jpg, then P00001_02.jpg for a
// second image on the same page.
func extractPDF(ctx context.Context, src, dstDir string) error {
	disablePDFConfigDir.Do(api.DisableConfigDir)
	log := logger.FromContext(ctx)

	f, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	perPage := map[int]int{}
	digest := func(img model.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		perPage[img.PageNr]++
		name := fmt.Sprintf("P%05d.jpg", img.PageNr)
		if n := perPage[img.PageNr]; n > 1 {
			name = fmt.Sprintf("P%05d_%02d.jpg", img.PageNr, n)
		}
		dst := filepath.Join(dstDir, name)

		if strings.EqualFold(img.FileType, "jpg") || strings.EqualFold(img.FileType, "jpeg") {
			return writeEntry(dst, img)
		}

		data, err := ReadAllEntry(img)
		if err != nil {
			return errors.Wrapf(err, "page %d", img.PageNr)
		}

		out, err := os.Create(dst)
		if err != nil {
			return errors.WithStack(err)
		}
		defer out.Close()

		if err := pageimage.ToJPEG(bytes.NewReader(data), out, 0); err != nil {
			log.Err(err).Warn("skipping undecodable pdf image", logger.Data{"page": img.PageNr, "type": img.FileType})
			out.Close()
			os.Remove(dst)
			perPage[img.PageNr]--
		}
		return nil
	}

	err = api.ExtractImages(f, nil, digest, model.NewDefaultConfiguration())
	return errors.WithStack(err)
}

// SafeJoin joins name below dir and fails with SecurityViolation when the
// cleaned result would not reside under dir.
func SafeJoin(dir, name string) (string, error) {
	cleanDir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}

	if filepath.IsAbs(filepath.FromSlash(name)) || strings.HasPrefix(name, "/") {
		return "", errcodes.SecurityViolation(name, dir)
	}

	target := filepath.Join(cleanDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(cleanDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errcodes.SecurityViolation(name, dir)
	}

	return target, nil
}

func writeEntry(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithStack(err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	defer out.Close()

	if _, err := CopyEntry(out, r); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Wrap(err, filepath.Base(dst))
	}
	return errors.WithStack(out.Close())
}
