package fileutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// MoveFile moves src to dst, falling back to copy + delete when a rename is not
// possible (e.g. across filesystems).
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if _, statErr := os.Stat(src); statErr != nil {
		return errors.WithStack(err)
	}

	err = copyFile(src, dst)
	if err != nil {
		return errors.WithStack(err)
	}

	// Remove the source file only after successful copy
	err = os.Remove(src)
	if err != nil {
		os.Remove(dst)
		return errors.WithStack(err)
	}

	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		os.Remove(dst)
		return errors.WithStack(err)
	}

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(destFile.Chmod(sourceInfo.Mode()))
}

// UniqueFilepath returns path, or "name (n).ext" for the first n that is free.
func UniqueFilepath(path string) string {
	return uniqueFilepath(path, func(name string, i int) string {
		return fmt.Sprintf("%s (%d)", name, i)
	})
}

// SuffixedFilepath appends suffix to the file name (before the extension) until
// the path is free: "a.cbz", "a-Rename.cbz", "a-Rename-Rename.cbz"...
func SuffixedFilepath(path, suffix string) string {
	return uniqueFilepath(path, func(name string, i int) string {
		for j := 0; j < i; j++ {
			name += suffix
		}
		return name
	})
}

func uniqueFilepath(path string, rename func(name string, i int) string) string {
	if !Exists(path) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	nameWithoutExt := base[:len(base)-len(ext)]

	for i := 1; ; i++ {
		newPath := filepath.Join(dir, rename(nameWithoutExt, i)+ext)
		if !Exists(newPath) {
			return newPath
		}
	}
}

// Exists reports whether anything exists at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
