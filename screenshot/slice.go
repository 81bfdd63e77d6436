package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Slice cuts img into consecutive horizontal strips at most height pixels
// tall, top to bottom. An image that already fits is returned as is.
func Slice(img Image, height int) ([]Image, error) {
	if height <= 0 {
		return nil, fmt.Errorf("slice height must be positive, got %d", height)
	}
	if img.Height <= height {
		return []Image{img}, nil
	}

	src, err := png.Decode(bytes.NewReader(img.PNG))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	sub, ok := src.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("cannot slice %T", src)
	}

	b := src.Bounds()
	var out []Image
	for y := b.Min.Y; y < b.Max.Y; y += height {
		r := image.Rect(b.Min.X, y, b.Max.X, min(y+height, b.Max.Y))
		var buf bytes.Buffer
		if err := png.Encode(&buf, sub.SubImage(r)); err != nil {
			return nil, fmt.Errorf("encode slice: %w", err)
		}
		out = append(out, Image{PNG: buf.Bytes(), Width: r.Dx(), Height: r.Dy()})
	}
	return out, nil
}
