package testgen

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// GeneratePDF creates a PDF document with one JPEG image per page.
func GeneratePDF(t *testing.T, dir, filename string, opts PDFOptions) string {
	t.Helper()

	api.DisableConfigDir()

	pageCount := opts.PageCount
	if pageCount <= 0 {
		pageCount = 3
	}
	width := opts.Width
	if width <= 0 {
		width = 100
	}
	height := opts.Height
	if height <= 0 {
		height = 140
	}

	imgDir := t.TempDir()
	images := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		data := GenerateImage(t, "jpeg", width, height)
		images = append(images, WriteFile(t, imgDir, fmt.Sprintf("img%03d.jpg", i), data))
	}

	path := filepath.Join(dir, filename)
	if err := api.ImportImagesFile(images, path, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()); err != nil {
		t.Fatalf("failed to generate PDF: %v", err)
	}
	return path
}
