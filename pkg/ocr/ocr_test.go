//go:build ocr

package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRecognizeImage_Blank(t *testing.T) {
	client, err := New("eng")
	if err != nil {
		t.Skipf("tesseract not available: %v", err)
	}
	defer client.Close()

	text, err := client.RecognizeImage(blankPNG(t, 200, 100))
	require.NoError(t, err)
	assert.Empty(t, text)
}
