package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoders for the photo formats the images folder accepts
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the encoder quality used for optimised listing photos.
const JPEGQuality = 85

// OptimizeImage decodes a photo, flattens it onto an opaque RGB canvas,
// scales it so the longest edge is at most maxEdge, and re-encodes it as JPEG.
// Images already within bounds are re-encoded without scaling.
func OptimizeImage(data []byte, maxEdge int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("image: empty input")
	}
	if maxEdge <= 0 {
		return nil, fmt.Errorf("image: invalid max edge %d", maxEdge)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image: decode: %w", err)
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("image: invalid dimensions")
	}

	w, h := FitWithin(b.Dx(), b.Dy(), maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// White background so transparent PNG/GIF areas do not turn black in JPEG.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("image: encode: %w", err)
	}
	return out.Bytes(), nil
}

// FitWithin scales (w, h) down proportionally so neither side exceeds maxEdge.
func FitWithin(w, h, maxEdge int) (int, int) {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxEdge {
		return w, h
	}
	nw := w * maxEdge / longest
	nh := h * maxEdge / longest
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
