package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/internal/testgen"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestExtract_ZIP(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	src := testgen.GenerateCBZ(t, dir, "comic.cbz", testgen.CBZOptions{
		PageCount: 2,
		Dirs:      []string{"chapter/"},
		Extra: []testgen.Entry{
			{Name: "chapter/010.png", Data: testgen.GenerateImage(t, "png", 10, 10)},
			{Name: ".DS_Store", Data: []byte("x")},
		},
	})

	out := filepath.Join(dir, "out")
	require.NoError(t, Extract(ctx, FormatZIP, src, out))

	assert.Equal(t, []string{".DS_Store", "000.png", "001.png", "chapter/010.png"}, listFiles(t, out))
}

func TestExtract_RAR(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	src := testgen.GenerateCBR(t, dir, "comic.cbr", testgen.CBROptions{PageCount: 3, Dir: "Vol 1"})

	out := filepath.Join(dir, "out")
	require.NoError(t, Extract(ctx, FormatRAR, src, out))

	files := listFiles(t, out)
	assert.Equal(t, []string{"Vol 1/000.jpg", "Vol 1/001.jpg", "Vol 1/002.jpg"}, files)

	original := testgen.GenerateImage(t, "jpeg", 100, 100)
	extracted, err := os.ReadFile(filepath.Join(out, "Vol 1", "001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, original, extracted)
}

func TestExtract_PDF(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	src := testgen.GeneratePDF(t, dir, "comic.pdf", testgen.PDFOptions{PageCount: 3, Width: 80, Height: 120})

	out := filepath.Join(dir, "out")
	require.NoError(t, Extract(ctx, FormatPDF, src, out))

	assert.Equal(t, []string{"P00001.jpg", "P00002.jpg", "P00003.jpg"}, listFiles(t, out))

	w, h := testgen.ImageSize(t, testgen.ReadFile(t, filepath.Join(out, "P00002.jpg")))
	assert.Equal(t, 80, w)
	assert.Equal(t, 120, h)
}

func TestExtract_CorruptZIP(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	src := testgen.WriteFile(t, dir, "comic.cbz", []byte("PK\x03\x04 truncated"))

	err := Extract(ctx, FormatZIP, src, filepath.Join(dir, "out"))
	assert.Error(t, err)
}

func TestExtract_TraversalEntry(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	src := testgen.GenerateCBZ(t, dir, "comic.cbz", testgen.CBZOptions{
		PageCount: 1,
		Extra:     []testgen.Entry{{Name: "../../evil.jpg", Data: []byte("x")}},
	})

	out := filepath.Join(dir, "nested", "out")
	err := Extract(ctx, FormatZIP, src, out)
	assert.True(t, errcodes.IsSecurityViolation(err))
	assert.NoFileExists(t, filepath.Join(dir, "evil.jpg"))
}

func TestExtract_Unsupported(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	err := Extract(ctx, FormatUnknown, "/tmp/whatever", t.TempDir())
	assert.True(t, errcodes.IsUnsupportedFormat(err))
}

func TestSafeJoin(t *testing.T) {
	dir := t.TempDir()

	p, err := SafeJoin(dir, "sub/001.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "001.jpg"), p)

	for _, name := range []string{"../../evil.jpg", "../evil.jpg", "/etc/passwd", "sub/../../evil.jpg", "..", "."} {
		_, err := SafeJoin(dir, name)
		assert.True(t, errcodes.IsSecurityViolation(err), name)
	}
}
