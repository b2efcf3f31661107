package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cbz")
	dst := filepath.Join(dir, "sub", "b.cbz")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, MoveFile(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestMoveFile_MissingSource(t *testing.T) {
	dir := t.TempDir()

	err := MoveFile(filepath.Join(dir, "missing.cbz"), filepath.Join(dir, "b.cbz"))
	assert.Error(t, err)
}

func TestUniqueFilepath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comic.cbz")

	assert.Equal(t, path, UniqueFilepath(path))

	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Equal(t, filepath.Join(dir, "comic (1).cbz"), UniqueFilepath(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "comic (1).cbz"), nil, 0644))
	assert.Equal(t, filepath.Join(dir, "comic (2).cbz"), UniqueFilepath(path))
}

func TestUniqueFilepath_ManyCollisions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comic.cbz")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	for i := 1; i <= 1200; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("comic (%d).cbz", i)), nil, 0644))
	}

	assert.Equal(t, filepath.Join(dir, "comic (1201).cbz"), UniqueFilepath(path))
}

func TestSuffixedFilepath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comic.cbz")

	assert.Equal(t, path, SuffixedFilepath(path, "-Rename"))

	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Equal(t, filepath.Join(dir, "comic-Rename.cbz"), SuffixedFilepath(path, "-Rename"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "comic-Rename.cbz"), nil, 0644))
	assert.Equal(t, filepath.Join(dir, "comic-Rename-Rename.cbz"), SuffixedFilepath(path, "-Rename"))
}
