package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/internal/testgen"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/fileutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx        context.Context
	dir        string
	scratch    string
	quarantine *fileutils.Quarantine
	normalizer *Normalizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	q := fileutils.NewQuarantine(filepath.Join(dir, "errors"))
	scratch := filepath.Join(dir, "scratch")
	return &fixture{
		ctx:        logger.New().WithContext(context.Background()),
		dir:        dir,
		scratch:    scratch,
		quarantine: q,
		normalizer: NewNormalizer(q, scratch),
	}
}

func (f *fixture) assertNoScratchLeft(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(f.scratch)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNormalize_CBR(t *testing.T) {
	f := newFixture(t)
	src := testgen.GenerateCBR(t, f.dir, "Blacksad 01.cbr", testgen.CBROptions{
		PageCount: 42,
		Dir:       "Blacksad",
		Extra:     []testgen.Entry{{Name: ".DS_Store", Data: []byte("junk")}},
	})

	dst, err := f.normalizer.Normalize(f.ctx, src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "Blacksad 01.cbz"), dst)
	assert.NoFileExists(t, src)

	entries := testgen.ZipEntries(t, dst)
	assert.Len(t, entries, 42)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e, "/"), e)
		assert.NotContains(t, e, "/")
		assert.True(t, archive.IsImageFile(e), e)
	}

	pages, err := archive.CountPages(dst)
	require.NoError(t, err)
	assert.Equal(t, 42, pages)
	f.assertNoScratchLeft(t)
}

func TestNormalize_ZIPIsFlattened(t *testing.T) {
	f := newFixture(t)
	src := testgen.GenerateCBZ(t, f.dir, "comic.zip", testgen.CBZOptions{
		PageCount:    2,
		HasComicInfo: true,
		Title:        "Flattened",
		Dirs:         []string{"ch1/", "ch2/", "__MACOSX/"},
		Extra: []testgen.Entry{
			{Name: "ch1/001.jpg", Data: testgen.GenerateImage(t, "jpeg", 10, 10)},
			{Name: "ch2/001.jpg", Data: testgen.GenerateImage(t, "jpeg", 12, 12)},
			{Name: "ch2/COVER.JPG", Data: testgen.GenerateImage(t, "jpeg", 10, 10)},
			{Name: "__MACOSX/ch1/._001.jpg", Data: []byte("resource fork")},
			{Name: "Thumbs.db", Data: []byte("x")},
			{Name: "readme.txt", Data: []byte("x")},
		},
	})

	dst, err := f.normalizer.Normalize(f.ctx, src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "comic.cbz"), dst)
	assert.NoFileExists(t, src)
	assert.Equal(t, []string{
		"000.png",
		"001-1.jpg",
		"001.jpg",
		"001.png",
		"COVER.jpg",
		"ComicInfo.xml",
	}, testgen.ZipEntries(t, dst))
	f.assertNoScratchLeft(t)
}

func TestNormalize_OrderIsStable(t *testing.T) {
	f := newFixture(t)
	src := testgen.GenerateCBZ(t, f.dir, "comic.cbz", testgen.CBZOptions{
		Pages: []testgen.Page{
			{Name: "page10.png"},
			{Name: "page2.png"},
			{Name: "page1.png"},
		},
	})

	dst, err := f.normalizer.Normalize(f.ctx, src)
	require.NoError(t, err)
	assert.Equal(t, src, dst)

	first, err := archive.ListImageEntries(dst)
	require.NoError(t, err)
	second, err := archive.ListImageEntries(dst)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"page1.png", "page10.png", "page2.png"}, first)

	// Normalizing a canonical archive again changes nothing.
	again, err := f.normalizer.Normalize(f.ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, dst, again)
	entries, err := archive.ListImageEntries(again)
	require.NoError(t, err)
	assert.Equal(t, first, entries)
}

func TestNormalize_PDF(t *testing.T) {
	f := newFixture(t)
	src := testgen.GeneratePDF(t, f.dir, "scan.pdf", testgen.PDFOptions{PageCount: 4})

	dst, err := f.normalizer.Normalize(f.ctx, src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "scan.cbz"), dst)
	assert.NoFileExists(t, src)
	assert.Equal(t, []string{"P00001.jpg", "P00002.jpg", "P00003.jpg", "P00004.jpg"}, testgen.ZipEntries(t, dst))
}

func TestNormalize_DetectsBySignature(t *testing.T) {
	f := newFixture(t)
	// A rar archive uploaded with a zip extension.
	src := testgen.GenerateCBR(t, f.dir, "mislabeled.cbz", testgen.CBROptions{PageCount: 2})

	dst, err := f.normalizer.Normalize(f.ctx, src)
	require.NoError(t, err)

	assert.Equal(t, src, dst)
	assert.Equal(t, []string{"000.jpg", "001.jpg"}, testgen.ZipEntries(t, dst))
}

func TestNormalize_ExistingDestinationIsKept(t *testing.T) {
	f := newFixture(t)
	existing := testgen.GenerateCBZ(t, f.dir, "comic.cbz", testgen.CBZOptions{PageCount: 1})
	src := testgen.GenerateCBR(t, f.dir, "comic.cbr", testgen.CBROptions{PageCount: 2})

	dst, err := f.normalizer.Normalize(f.ctx, src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "comic (1).cbz"), dst)
	assert.Len(t, testgen.ZipEntries(t, existing), 1)
	assert.Len(t, testgen.ZipEntries(t, dst), 2)
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	src := testgen.WriteFile(t, f.dir, "comic.cbz", []byte("just some text"))

	_, err := f.normalizer.Normalize(f.ctx, src)
	assert.True(t, errcodes.IsUnsupportedFormat(err))

	assert.FileExists(t, src)
	assert.Equal(t, []byte("just some text"), testgen.ReadFile(t, src))
	assert.NoDirExists(t, f.quarantine.Dir())
	assert.NoDirExists(t, f.scratch)
}

func TestNormalize_CorruptArchiveIsQuarantined(t *testing.T) {
	f := newFixture(t)
	src := testgen.WriteFile(t, f.dir, "broken.cbz", []byte("PK\x03\x04 this is not really a zip"))

	_, err := f.normalizer.Normalize(f.ctx, src)
	assert.True(t, errcodes.IsArchiveIO(err))

	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(f.quarantine.Dir(), "broken.cbz"))
	assert.NoFileExists(t, filepath.Join(f.dir, "broken.cbz.tmp"))
	f.assertNoScratchLeft(t)
}

func TestNormalize_TraversalEntryIsQuarantined(t *testing.T) {
	f := newFixture(t)
	src := testgen.GenerateCBZ(t, f.dir, "evil.cbz", testgen.CBZOptions{
		PageCount: 1,
		Extra:     []testgen.Entry{{Name: "../../evil.jpg", Data: []byte("x")}},
	})

	_, err := f.normalizer.Normalize(f.ctx, src)
	assert.True(t, errcodes.IsArchiveIO(err))
	assert.FileExists(t, filepath.Join(f.quarantine.Dir(), "evil.cbz"))
	assert.NoFileExists(t, filepath.Join(f.dir, "evil.jpg"))
}

func TestNormalize_OversizedEntryIsQuarantined(t *testing.T) {
	f := newFixture(t)
	src := testgen.GenerateOversizedCBZ(t, f.dir, "big.cbz", "001.jpg", archive.MaxEntrySize+1024*1024)
	original := testgen.ReadFile(t, src)

	_, err := f.normalizer.Normalize(f.ctx, src)
	require.Error(t, err)
	assert.True(t, errcodes.IsArchiveIO(err))
	assert.ErrorIs(t, err, archive.ErrEntryTooLarge)

	assert.NoFileExists(t, src)
	quarantined := filepath.Join(f.quarantine.Dir(), "big.cbz")
	require.FileExists(t, quarantined)
	assert.Equal(t, original, testgen.ReadFile(t, quarantined))
	f.assertNoScratchLeft(t)
}

func TestFlatName(t *testing.T) {
	assert.Equal(t, "001.jpg", FlatName("chapter/001.JPG"))
	assert.Equal(t, "Cover.jpeg", FlatName("Cover.JPEG"))
	assert.Equal(t, "ComicInfo.xml", FlatName("meta/ComicInfo.XML"))
	assert.Equal(t, "noext", FlatName("a/b/noext"))
}
