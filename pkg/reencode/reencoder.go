// Package reencode rewrites the pages of canonical archives as resized lossy
// WebP images.
package reencode

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/cbz"
	"github.com/slucky31/mycomicsmanager-api/pkg/convert"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
	"github.com/slucky31/mycomicsmanager-api/pkg/pageimage"
)

const (
	DefaultMaxWidth    = 1400
	DefaultWorkerRatio = 0.75

	backupSuffix = ".bak"
	webpExt      = ".webp"
)

type Options struct {
	MaxWidth    int
	Quality     int
	WorkerRatio float64
	ScratchRoot string
}

type Reencoder struct {
	opts Options
}

func New(opts Options) *Reencoder {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 {
		opts.Quality = pageimage.DefaultQuality
	}
	if opts.WorkerRatio <= 0 {
		opts.WorkerRatio = DefaultWorkerRatio
	}
	return &Reencoder{opts: opts}
}

// WorkerCount returns ceil(ratio * NumCPU), at least 1 and at most jobs.
func WorkerCount(ratio float64, jobs int) int {
	n := int(math.Ceil(ratio * float64(runtime.NumCPU())))
	if n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Reencode converts every non-WebP page of the archive at archivePath and
// rebuilds the archive. It does nothing when comic is already WebP formatted.
// On success comic.WebPFormatted and comic.PageCount are updated; the caller
// persists them.
func (r *Reencoder) Reencode(ctx context.Context, comic *models.Comic, archivePath string) error {
	if comic.WebPFormatted {
		return nil
	}
	log := logger.FromContext(ctx)

	scratch, err := convert.NewScratchDir(r.opts.ScratchRoot)
	if err != nil {
		return err
	}
	defer convert.RemoveScratchDir(ctx, scratch)

	flatDir, err := convert.Extract(ctx, archive.FormatZIP, archivePath, scratch)
	if err != nil {
		return errcodes.ArchiveIO(archivePath, err)
	}

	files, err := pendingImages(flatDir)
	if err != nil {
		return err
	}

	if err := r.convertAll(ctx, files); err != nil {
		return err
	}

	pages, err := swap(ctx, flatDir, archivePath)
	if err != nil {
		return err
	}

	comic.WebPFormatted = true
	comic.PageCount = pages
	log.Info("comic re-encoded", logger.Data{"comic_id": comic.ID, "converted": len(files), "pages": pages})
	return nil
}

type conversion struct {
	src string
	dst string
}

// pendingImages lists the images of dir that are not WebP yet along with their
// WebP destination. Destinations never collide with an existing entry.
func pendingImages(dir string) ([]conversion, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		taken[e.Name()] = true
	}

	var files []conversion
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !archive.IsImageFile(name) || archive.IsEfficientImage(name) {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		dst := base + webpExt
		for i := 1; taken[dst]; i++ {
			dst = fmt.Sprintf("%s-%d%s", base, i, webpExt)
		}
		taken[dst] = true
		files = append(files, conversion{src: filepath.Join(dir, name), dst: filepath.Join(dir, dst)})
	}
	return files, nil
}

func (r *Reencoder) convertAll(ctx context.Context, files []conversion) error {
	if len(files) == 0 {
		return nil
	}

	processErrors := make([]error, len(files))
	numWorkers := WorkerCount(r.opts.WorkerRatio, len(files))

	var wg sync.WaitGroup
	jobs := make(chan int, len(files))

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					processErrors[i] = ctx.Err()
					continue
				default:
				}
				processErrors[i] = r.convertFile(files[i])
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	for i, err := range processErrors {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return errors.Wrap(err, "re-encoding cancelled")
			}
			return errors.Wrapf(err, "failed to re-encode %s", filepath.Base(files[i].src))
		}
	}
	return nil
}

// convertFile writes c.src as WebP to c.dst and removes the original.
func (r *Reencoder) convertFile(c conversion) error {
	img, _, err := pageimage.DecodeFile(c.src)
	if err != nil {
		return err
	}

	if err := pageimage.SaveFile(c.dst, pageimage.FitWidth(img, r.opts.MaxWidth), r.opts.Quality); err != nil {
		return err
	}
	return errors.WithStack(os.Remove(c.src))
}

// swap rebuilds archivePath from dir, keeping the previous archive as a backup
// until the rebuild has succeeded.
func swap(ctx context.Context, dir, archivePath string) (int, error) {
	backup := archivePath + backupSuffix
	if err := os.Rename(archivePath, backup); err != nil {
		return 0, errcodes.ArchiveIO(archivePath, errors.WithStack(err))
	}

	pages, err := cbz.Build(dir, archivePath)
	if err != nil {
		if rerr := os.Rename(backup, archivePath); rerr != nil {
			logger.FromContext(ctx).Err(rerr).Error("failed to restore archive backup", logger.Data{"backup": backup})
		}
		return 0, err
	}

	if err := os.Remove(backup); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to remove archive backup", logger.Data{"backup": backup})
	}
	return pages, nil
}
