// Package pageimage decodes, transforms and encodes comic page images.
package pageimage

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Register the decoders used by PDF extraction and page re-encoding.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultQuality is used for lossy encodings when no quality is configured.
const DefaultQuality = 75

// Side selects a half of a double-page spread.
type Side int

const (
	LeftHalf Side = iota
	RightHalf
)

// Decode decodes an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	return img, format, nil
}

// DecodeFile decodes the image stored at path.
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	defer f.Close()

	img, format, err := Decode(f)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, format, nil
}

// Encode writes img in the format matching ext (".jpg", ".png", ".gif" or
// ".webp"). quality only applies to lossy formats.
func Encode(w io.Writer, img image.Image, ext string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return errors.WithStack(jpeg.Encode(w, img, &jpeg.Options{Quality: quality}))
	case ".png":
		return errors.WithStack(png.Encode(w, img))
	case ".gif":
		return errors.WithStack(gif.Encode(w, img, nil))
	case ".webp":
		return errors.WithStack(webp.Encode(w, img, &webp.Options{Quality: float32(quality)}))
	}
	return errors.Errorf("unsupported image extension %q", ext)
}

// SaveFile encodes img to path, choosing the format from its extension.
func SaveFile(path string, img image.Image, quality int) error {
	var buf bytes.Buffer
	if err := Encode(&buf, img, filepath.Ext(path), quality); err != nil {
		return err
	}
	return errors.WithStack(os.WriteFile(path, buf.Bytes(), 0644))
}

// ToJPEG re-encodes any decodable image as JPEG.
func ToJPEG(r io.Reader, w io.Writer, quality int) error {
	img, _, err := Decode(r)
	if err != nil {
		return err
	}
	return Encode(w, img, ".jpg", quality)
}

// CropHalf keeps the left or right half of img. The left half is floor(w/2)
// pixels wide, and so is the right half.
func CropHalf(img image.Image, side Side) image.Image {
	b := img.Bounds()
	half := b.Dx() / 2

	rect := image.Rect(b.Min.X, b.Min.Y, b.Min.X+half, b.Max.Y)
	if side == RightHalf {
		rect = image.Rect(b.Max.X-half, b.Min.Y, b.Max.X, b.Max.Y)
	}
	return imaging.Crop(img, rect)
}

// TargetWidth returns the width img should be resized to, or 0 when it can be
// kept as is. Images wider than tall are treated as double-page spreads and get
// twice the width.
func TargetWidth(width, height, maxWidth int) int {
	if maxWidth <= 0 || width <= maxWidth {
		return 0
	}

	target := maxWidth
	if width > height {
		target = maxWidth * 2
	}
	if target >= width {
		return 0
	}
	return target
}

// FitWidth downsizes img proportionally following TargetWidth. Images are never
// upscaled, so a spread narrower than twice maxWidth keeps its size.
func FitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	target := TargetWidth(b.Dx(), b.Dy(), maxWidth)
	if target == 0 {
		return img
	}
	return imaging.Resize(img, target, 0, imaging.Lanczos)
}
