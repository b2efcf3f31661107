package fileutils

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
)

// DuplicateSuffix is appended to a quarantined file name for as long as the
// name is already taken in the quarantine directory.
const DuplicateSuffix = "-Duplicate"

// Quarantine relocates problem files into an error directory so they are never
// silently lost or overwritten.
type Quarantine struct {
	dir string
}

func NewQuarantine(dir string) *Quarantine {
	return &Quarantine{dir: dir}
}

func (q *Quarantine) Dir() string {
	return q.dir
}

// MoveOrQuarantine moves origin to destination. When the move fails the origin
// file is quarantined and a ComicIO error wrapping the move failure is
// returned.
func (q *Quarantine) MoveOrQuarantine(ctx context.Context, origin, destination string) error {
	log := logger.FromContext(ctx)

	err := MoveFile(origin, destination)
	if err == nil {
		return nil
	}

	log.Err(err).Error("failed to move comic file", logger.Data{"origin": origin, "destination": destination})
	if _, qerr := q.Quarantine(ctx, origin); qerr != nil {
		log.Err(qerr).Warn("failed to quarantine comic file", logger.Data{"origin": origin})
	}

	return errcodes.ComicIO(origin, err)
}

// Quarantine moves path into the quarantine directory and returns its new
// location.
func (q *Quarantine) Quarantine(ctx context.Context, path string) (string, error) {
	if !Exists(path) {
		return "", errors.Errorf("nothing to quarantine at %s", path)
	}
	if err := os.MkdirAll(q.dir, 0755); err != nil {
		return "", errors.WithStack(err)
	}

	dst := SuffixedFilepath(filepath.Join(q.dir, filepath.Base(path)), DuplicateSuffix)
	if err := MoveFile(path, dst); err != nil {
		return "", errors.WithStack(err)
	}

	logger.FromContext(ctx).Warn("comic file quarantined", logger.Data{"origin": path, "quarantined": dst})
	return dst, nil
}
