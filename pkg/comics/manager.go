// Package comics stores comic records and runs the file workflows attached to
// them: import, metadata updates, covers, OCR lookups and re-encoding.
package comics

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/cbz"
	"github.com/slucky31/mycomicsmanager-api/pkg/cbzpages"
	"github.com/slucky31/mycomicsmanager-api/pkg/config"
	"github.com/slucky31/mycomicsmanager-api/pkg/convert"
	"github.com/slucky31/mycomicsmanager-api/pkg/fileutils"
	"github.com/slucky31/mycomicsmanager-api/pkg/isbn"
	"github.com/slucky31/mycomicsmanager-api/pkg/libraries"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
	"github.com/slucky31/mycomicsmanager-api/pkg/reencode"
)

// Recognizer reads the text printed on a page image.
type Recognizer interface {
	RecognizeImage(imageData []byte) (string, error)
}

// MetadataColumns are the columns written by Update.
var MetadataColumns = []string{
	"ebook_path", "ebook_name", "cover_type",
	"title", "series", "volume", "writer", "penciller", "colorist", "editor",
	"language_iso", "isbn", "url", "price", "published", "category", "review",
}

var deleteBatchSize = 100

type Manager struct {
	comics     *Service
	libraries  *libraries.Service
	resolver   *libraries.Resolver
	extractor  *cbzpages.Extractor
	reencoder  *reencode.Reencoder
	recognizer Recognizer
}

// NewManager wires a Manager. recognizer may be nil, in which case the OCR
// operations fail.
func NewManager(cfg *config.Config, comicService *Service, libraryService *libraries.Service, resolver *libraries.Resolver, recognizer Recognizer) *Manager {
	return &Manager{
		comics:    comicService,
		libraries: libraryService,
		resolver:  resolver,
		extractor: cbzpages.NewExtractor(cfg.ReencodeQuality),
		reencoder: reencode.New(reencode.Options{
			MaxWidth:    cfg.ReencodeMaxWidth,
			Quality:     cfg.ReencodeQuality,
			WorkerRatio: cfg.ReencodeWorkerRatio,
			ScratchRoot: resolver.UploadDir(),
		}),
		recognizer: recognizer,
	}
}

func (m *Manager) quarantine(library *models.Library) *fileutils.Quarantine {
	return fileutils.NewQuarantine(m.resolver.ErrorsDir(library))
}

// library returns the comic's library, loading it when needed.
func (m *Manager) library(ctx context.Context, comic *models.Comic) (*models.Library, error) {
	if comic.Library != nil {
		return comic.Library, nil
	}
	library, err := m.libraries.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &comic.LibraryID})
	if err != nil {
		return nil, err
	}
	comic.Library = library
	return library, nil
}

func (m *Manager) comicPath(ctx context.Context, comic *models.Comic) (string, error) {
	library, err := m.library(ctx, comic)
	if err != nil {
		return "", err
	}
	return m.resolver.ComicPath(library, comic), nil
}

// Import normalizes an uploaded file, moves it into the library and records
// it. Metadata found in the archive sidecar seeds the record.
func (m *Manager) Import(ctx context.Context, library *models.Library, uploadedPath string) (*models.Comic, error) {
	log := logger.FromContext(ctx)
	q := m.quarantine(library)

	normalized, err := convert.NewNormalizer(q, m.resolver.UploadDir()).Normalize(ctx, uploadedPath)
	if err != nil {
		return nil, err
	}

	libPath := m.resolver.LibraryPath(library)
	destination := fileutils.SuffixedFilepath(filepath.Join(libPath, filepath.Base(normalized)), fileutils.RenameSuffix)
	if destination != filepath.Join(libPath, filepath.Base(normalized)) {
		log.Warn("comic file renamed on import", logger.Data{"source": uploadedPath, "destination": destination})
	}
	if err := q.MoveOrQuarantine(ctx, normalized, destination); err != nil {
		return nil, err
	}

	comic := &models.Comic{
		LibraryID: library.ID,
		Library:   library,
		EbookName: filepath.Base(destination),
		EbookPath: filepath.Base(destination),
		Title:     fileutils.TitleFromFilename(destination),
		CoverType: models.CoverTypePortrait,
	}

	comicInfo, err := cbz.ReadComicInfo(destination)
	if err != nil {
		return nil, err
	}
	if comicInfo != nil {
		comicInfo.ApplyTo(comic)
		if err := m.organize(ctx, library, comic); err != nil {
			return nil, err
		}
	}

	comic.PageCount, err = archive.CountPages(m.resolver.ComicPath(library, comic))
	if err != nil {
		return nil, err
	}

	if err := m.comics.CreateComic(ctx, comic); err != nil {
		return nil, err
	}
	comic.Library = library

	// The cover is named after the record ID. It is only a cache, so a comic
	// without a usable first page is still imported.
	if err := m.SetCover(ctx, comic); err != nil {
		log.Err(err).Warn("failed to extract cover", logger.Data{"comic_id": comic.ID})
	}

	if err := cbz.WriteComicInfo(m.resolver.ComicPath(library, comic), cbz.FromComic(comic)); err != nil {
		return nil, err
	}

	log.Info("comic imported", logger.Data{"comic_id": comic.ID, "path": comic.EbookPath, "pages": comic.PageCount})
	return comic, nil
}

// organize moves the comic file to the location derived from its series and
// volume and updates EbookPath and EbookName accordingly.
func (m *Manager) organize(ctx context.Context, library *models.Library, comic *models.Comic) error {
	rel := fileutils.OrganizedComicPath(comic.Series, comic.Volume, comic.EbookPath)
	if rel == comic.EbookPath {
		return nil
	}

	src := m.resolver.ComicPath(library, comic)
	dst := filepath.Join(m.resolver.LibraryPath(library), rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithStack(err)
	}
	dst = fileutils.UniqueFilepath(dst)

	if err := m.quarantine(library).MoveOrQuarantine(ctx, src, dst); err != nil {
		return err
	}

	rel, err := m.resolver.RelativeToLibrary(library, dst)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("comic file organized", logger.Data{"from": comic.EbookPath, "to": rel})
	comic.EbookPath = rel
	comic.EbookName = filepath.Base(rel)
	return nil
}

// Update organizes the comic file, persists the metadata and rewrites the
// archive sidecar.
func (m *Manager) Update(ctx context.Context, comic *models.Comic) error {
	library, err := m.library(ctx, comic)
	if err != nil {
		return err
	}

	if err := m.organize(ctx, library, comic); err != nil {
		return err
	}

	if err := m.comics.UpdateComic(ctx, comic, UpdateComicOptions{Columns: MetadataColumns}); err != nil {
		return err
	}

	return cbz.WriteComicInfo(m.resolver.ComicPath(library, comic), cbz.FromComic(comic))
}

// Edit validates and applies u, then runs Update. A new cover type also
// regenerates the cover.
func (m *Manager) Edit(ctx context.Context, comic *models.Comic, u *MetadataUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}

	coverType := comic.CoverType
	u.ApplyTo(comic)

	if err := m.Update(ctx, comic); err != nil {
		return err
	}
	if comic.CoverType != coverType {
		return m.SetCover(ctx, comic)
	}
	return nil
}

// SetCover extracts the cover into the covers directory, cropped according to
// the cover type, and stores its file name in CoverPath.
func (m *Manager) SetCover(ctx context.Context, comic *models.Comic) error {
	if err := ValidateCoverType(comic.CoverType); err != nil {
		return err
	}

	path, err := m.comicPath(ctx, comic)
	if err != nil {
		return err
	}

	coverPath, err := m.extractor.ExtractCover(ctx, path, comic.ID, comic.CoverType, m.resolver.CoversDir())
	if err != nil {
		return err
	}

	name := filepath.Base(coverPath)
	if comic.CoverPath != nil && *comic.CoverPath != name {
		m.removeCover(ctx, *comic.CoverPath)
	}
	comic.CoverPath = &name

	return m.comics.UpdateComic(ctx, comic, UpdateComicOptions{Columns: []string{"cover_path", "cover_type"}})
}

func (m *Manager) removeCover(ctx context.Context, name string) {
	path := filepath.Join(m.resolver.CoversDir(), filepath.Base(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.FromContext(ctx).Err(err).Warn("failed to remove cover", logger.Data{"path": path})
	}
}

// ExtractFirstImages extracts up to n pages from the start of the comic into
// the ISBN covers directory and returns their file names.
func (m *Manager) ExtractFirstImages(ctx context.Context, comic *models.Comic, n int) ([]string, error) {
	count, err := m.pageCount(ctx, comic)
	if err != nil {
		return nil, err
	}
	return m.extractRange(ctx, comic, 0, min(n, count))
}

// ExtractLastImages extracts up to n pages from the end of the comic into the
// ISBN covers directory and returns their file names.
func (m *Manager) ExtractLastImages(ctx context.Context, comic *models.Comic, n int) ([]string, error) {
	count, err := m.pageCount(ctx, comic)
	if err != nil {
		return nil, err
	}
	return m.extractRange(ctx, comic, max(count-n, 0), count)
}

func (m *Manager) extractRange(ctx context.Context, comic *models.Comic, from, to int) ([]string, error) {
	path, err := m.comicPath(ctx, comic)
	if err != nil {
		return nil, err
	}

	names := []string{}
	for i := from; i < to; i++ {
		p, err := m.extractor.ExtractPage(ctx, path, comic.ID, i, m.resolver.IsbnCoversDir())
		if err != nil {
			return nil, err
		}
		names = append(names, filepath.Base(p))
	}
	return names, nil
}

// pageCount returns the comic's page count, computing and persisting it when
// it is not known yet.
func (m *Manager) pageCount(ctx context.Context, comic *models.Comic) (int, error) {
	if comic.PageCount > 0 {
		return comic.PageCount, nil
	}

	path, err := m.comicPath(ctx, comic)
	if err != nil {
		return 0, err
	}
	count, err := archive.CountPages(path)
	if err != nil {
		return 0, err
	}

	comic.PageCount = count
	if err := m.comics.UpdateComic(ctx, comic, UpdateComicOptions{Columns: []string{"page_count"}}); err != nil {
		return 0, err
	}
	return count, nil
}

// ExtractISBN runs OCR on the page at index and returns the ISBN-looking
// strings found in it.
func (m *Manager) ExtractISBN(ctx context.Context, comic *models.Comic, index int) ([]string, error) {
	text, err := m.recognizePage(ctx, comic, index)
	if err != nil {
		return nil, err
	}
	return isbn.FindCandidates(text), nil
}

// SearchISBN looks for an ISBN on the first and last n pages, where it is
// usually printed, and returns the normalized values found, valid ones first.
func (m *Manager) SearchISBN(ctx context.Context, comic *models.Comic, n int) ([]string, error) {
	count, err := m.pageCount(ctx, comic)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for i := 0; i < count; i++ {
		if i >= n && i < count-n {
			continue
		}
		found, err := m.ExtractISBN(ctx, comic, i)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	return isbn.Extract(strings.Join(candidates, "\n")), nil
}

// ExtractTitle runs OCR on the cover and returns the recognized text.
func (m *Manager) ExtractTitle(ctx context.Context, comic *models.Comic) (string, error) {
	return m.recognizePage(ctx, comic, cbzpages.CoverIndex)
}

func (m *Manager) recognizePage(ctx context.Context, comic *models.Comic, index int) (string, error) {
	if m.recognizer == nil {
		return "", errors.New("no text recognizer configured")
	}

	path, err := m.comicPath(ctx, comic)
	if err != nil {
		return "", err
	}

	scratch, err := convert.NewScratchDir(m.resolver.UploadDir())
	if err != nil {
		return "", err
	}
	defer convert.RemoveScratchDir(ctx, scratch)

	imagePath, err := m.extractor.ExtractPage(ctx, path, comic.ID, index, scratch)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", errors.WithStack(err)
	}

	text, err := m.recognizer.RecognizeImage(data)
	if err != nil {
		return "", errors.Wrapf(err, "failed to recognize page %d", index)
	}
	logger.FromContext(ctx).Debug("page recognized", logger.Data{"comic_id": comic.ID, "index": index, "text": text})
	return strings.TrimSpace(text), nil
}

// Reencode converts the comic's pages to WebP. A failure leaves the record
// untouched; it is logged and returned so batch callers can move on.
func (m *Manager) Reencode(ctx context.Context, comic *models.Comic) error {
	if comic.WebPFormatted {
		return nil
	}
	log := logger.FromContext(ctx)

	path, err := m.comicPath(ctx, comic)
	if err != nil {
		return err
	}

	if err := m.reencoder.Reencode(ctx, comic, path); err != nil {
		log.Err(err).Warn("failed to re-encode comic", logger.Data{"comic_id": comic.ID, "path": path})
		return err
	}

	if err := m.comics.UpdateComic(ctx, comic, UpdateComicOptions{Columns: []string{"webp_formatted", "page_count"}}); err != nil {
		return err
	}

	// Page extensions changed, so the cached cover is stale.
	return m.SetCover(ctx, comic)
}

// DeleteLibrary deletes every comic of the library, covers included, then the
// library itself.
func (m *Manager) DeleteLibrary(ctx context.Context, library *models.Library) error {
	log := logger.FromContext(ctx)

	for {
		list, err := m.comics.ListComics(ctx, ListComicsOptions{LibraryID: &library.ID, Limit: &deleteBatchSize})
		if err != nil {
			return err
		}
		if len(list) == 0 {
			break
		}
		for _, comic := range list {
			comic.Library = library
			if err := m.Delete(ctx, comic); err != nil {
				return err
			}
		}
	}

	if err := m.libraries.DeleteLibrary(ctx, library); err != nil {
		return err
	}
	log.Info("library deleted", logger.Data{"library_id": library.ID, "path": library.RelPath})
	return nil
}

// Delete removes the comic archive, its cover and its record.
func (m *Manager) Delete(ctx context.Context, comic *models.Comic) error {
	path, err := m.comicPath(ctx, comic)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	if comic.CoverPath != nil {
		m.removeCover(ctx, *comic.CoverPath)
	}

	return m.comics.DeleteComic(ctx, comic)
}
