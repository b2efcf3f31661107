package comics

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveComicOptions struct {
	ID        *int
	EbookPath *string
	LibraryID *int
}

type ListComicsOptions struct {
	Limit         *int
	Offset        *int
	LibraryID     *int
	WebPFormatted *bool
}

type UpdateComicOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

func (svc *Service) CreateComic(ctx context.Context, comic *models.Comic) error {
	now := time.Now()
	if comic.CreatedAt.IsZero() {
		comic.CreatedAt = now
	}
	comic.UpdatedAt = comic.CreatedAt
	if comic.CoverType == "" {
		comic.CoverType = models.CoverTypePortrait
	}

	_, err := svc.db.
		NewInsert().
		Model(comic).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveComic(ctx context.Context, opts RetrieveComicOptions) (*models.Comic, error) {
	comic := &models.Comic{}

	q := svc.db.
		NewSelect().
		Model(comic).
		Relation("Library")

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}
	if opts.EbookPath != nil {
		q = q.Where("c.ebook_path = ?", *opts.EbookPath)
	}
	if opts.LibraryID != nil {
		q = q.Where("c.library_id = ?", *opts.LibraryID)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Comic")
		}
		return nil, errors.WithStack(err)
	}

	return comic, nil
}

func (svc *Service) ListComics(ctx context.Context, opts ListComicsOptions) ([]*models.Comic, error) {
	comics := []*models.Comic{}

	q := svc.db.
		NewSelect().
		Model(&comics).
		Relation("Library").
		Order("c.series ASC", "c.volume ASC", "c.id ASC")

	if opts.LibraryID != nil {
		q = q.Where("c.library_id = ?", *opts.LibraryID)
	}
	if opts.WebPFormatted != nil {
		q = q.Where("c.webp_formatted = ?", *opts.WebPFormatted)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return comics, nil
}

// UpdateComic persists the given columns. updated_at is always included.
func (svc *Service) UpdateComic(ctx context.Context, comic *models.Comic, opts UpdateComicOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	comic.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(comic).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Comic")
	}

	return nil
}

func (svc *Service) DeleteComic(ctx context.Context, comic *models.Comic) error {
	_, err := svc.db.
		NewDelete().
		Model(comic).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
