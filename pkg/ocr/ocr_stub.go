//go:build !ocr

// Package ocr recognizes text on page images with the Tesseract engine.
//
// This is the stub used when the "ocr" build tag is not set. To enable OCR,
// rebuild with:
//
//	go build -tags ocr
package ocr

import "github.com/pkg/errors"

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("ocr support not enabled; rebuild with -tags ocr")

// Client is a stub OCR client.
type Client struct{}

// New returns ErrOCRNotEnabled.
func New(_ string) (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op. It is safe to call on a nil client.
func (c *Client) Close() error {
	return nil
}

// RecognizeImage returns ErrOCRNotEnabled.
func (c *Client) RecognizeImage(_ []byte) (string, error) {
	return "", ErrOCRNotEnabled
}
