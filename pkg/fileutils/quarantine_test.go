package fileutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveOrQuarantine_Success(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	q := NewQuarantine(filepath.Join(dir, "errors"))

	src := filepath.Join(dir, "a.cbz")
	dst := filepath.Join(dir, "b.cbz")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	require.NoError(t, q.MoveOrQuarantine(ctx, src, dst))
	assert.FileExists(t, dst)
	assert.NoDirExists(t, q.Dir())
}

func TestMoveOrQuarantine_FailureQuarantines(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	q := NewQuarantine(filepath.Join(dir, "errors"))

	src := filepath.Join(dir, "a.cbz")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	// The destination directory doesn't exist, so the move fails.
	dst := filepath.Join(dir, "missing", "dir", "a.cbz")

	err := q.MoveOrQuarantine(ctx, src, dst)
	require.Error(t, err)
	assert.True(t, errcodes.IsComicIO(err))

	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(q.Dir(), "a.cbz"))
}

func TestQuarantine_DuplicateNames(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	dir := t.TempDir()
	q := NewQuarantine(filepath.Join(dir, "errors"))

	for i := 0; i < 3; i++ {
		src := filepath.Join(dir, "a.cbz")
		require.NoError(t, os.WriteFile(src, []byte{byte(i)}, 0644))
		_, err := q.Quarantine(ctx, src)
		require.NoError(t, err)
	}

	for i, name := range []string{"a.cbz", "a-Duplicate.cbz", "a-Duplicate-Duplicate.cbz"} {
		data, err := os.ReadFile(filepath.Join(q.Dir(), name))
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, data)
	}
}
