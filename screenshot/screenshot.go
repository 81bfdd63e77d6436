// Package screenshot renders web files in a headless browser and returns
// PNG images of the full page.
package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
)

var (
	ErrBrowserNotFound = errors.New("no headless browser found")
	ErrCaptureFailed   = errors.New("screenshot failed")
)

// Image is an encoded PNG and its pixel size.
type Image struct {
	PNG    []byte
	Width  int
	Height int
}

// Capturer renders a file to an image.
type Capturer interface {
	Capture(ctx context.Context, path string) (Image, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context, path string) (Image, error)

func (f CapturerFunc) Capture(ctx context.Context, path string) (Image, error) {
	return f(ctx, path)
}

// DecodeImage reads the dimensions of a PNG.
func DecodeImage(data []byte) (Image, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode png: %w", err)
	}
	return Image{PNG: data, Width: cfg.Width, Height: cfg.Height}, nil
}
