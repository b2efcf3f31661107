package fileutils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrganizedFileName(t *testing.T) {
	tests := []struct {
		name     string
		series   string
		volume   int
		expected string
	}{
		{"simple", "Blacksad", 1, "Blacksad_T001.cbz"},
		{"multiple words", "the walking dead", 12, "TheWalkingDead_T012.cbz"},
		{"unsafe characters", "What If? / Marvel", 3, "WhatIfMarvel_T003.cbz"},
		{"large volume", "One Piece", 1042, "OnePiece_T1042.cbz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OrganizedFileName(tt.series, tt.volume))
		})
	}
}

func TestOrganizedComicPath(t *testing.T) {
	t.Run("no series keeps current path", func(t *testing.T) {
		assert.Equal(t, "upload.cbz", OrganizedComicPath("", 4, "upload.cbz"))
	})

	t.Run("series without volume only moves", func(t *testing.T) {
		assert.Equal(t, filepath.Join("Blacksad", "upload.cbz"), OrganizedComicPath("Blacksad", 0, "upload.cbz"))
	})

	t.Run("series and volume renames", func(t *testing.T) {
		assert.Equal(t, filepath.Join("Blacksad", "Blacksad_T002.cbz"), OrganizedComicPath("Blacksad", 2, filepath.Join("Old", "upload.cbz")))
	})
}

func TestSanitizeForFilename(t *testing.T) {
	assert.Equal(t, "Whats up", sanitizeForFilename("  Whats   up...  "))
	assert.Equal(t, "It's", sanitizeForFilename("It’s"))
	assert.Equal(t, "ab", sanitizeForFilename("a<>:|?*b"))
	assert.Equal(t, "", sanitizeForFilename(" . "))
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "Blacksad_T001", TitleFromFilename("/lib/Blacksad/Blacksad_T001.cbz"))
	assert.Equal(t, "comic", TitleFromFilename("comic"))
}
