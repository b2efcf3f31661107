//go:build ocr

// Package ocr recognizes text on page images with the Tesseract engine.
//
// It requires Tesseract and its language data to be installed, e.g. on
// Ubuntu/Debian:
//
//	apt-get install tesseract-ocr tesseract-ocr-fra
package ocr

import (
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
)

// Client wraps Tesseract. A Tesseract handle is not safe for concurrent use, so
// calls are serialized.
type Client struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a client recognizing the given "+" separated languages
// (e.g. "fra+eng"). The client should be closed when no longer needed.
func New(language string) (*Client, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
			client.Close()
			return nil, errors.WithStack(err)
		}
	}
	return &Client{client: client}, nil
}

// Close releases OCR resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return errors.WithStack(c.client.Close())
}

// RecognizeImage performs OCR on encoded image data (PNG, JPEG, TIFF...).
// The recognized text is returned with surrounding whitespace trimmed.
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return "", errors.Wrap(err, "failed to set image")
	}

	text, err := c.client.Text()
	if err != nil {
		return "", errors.Wrap(err, "ocr failed")
	}

	return strings.TrimSpace(text), nil
}
