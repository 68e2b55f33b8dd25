// Package image provides image loading, patch layers, selections and
// compositing of pasted patches onto a canvas.
package image

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"poisson-editor/pkg/bitmask"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Layer is a patch pasted over the canvas.
type Layer struct {
	Path  string        // Original file path, if loaded from disk
	Image image.Image   // Patch pixels
	Mask  *bitmask.Mask // Opaque patch pixels; nil means the whole rectangle
	Z     float64       // Stacking order, higher is on top

	// Position of the patch's top-left corner on the canvas
	OffsetX int
	OffsetY int
}

// NewLayer creates a layer for img at the given canvas offset.
func NewLayer(img image.Image, offsetX, offsetY int) *Layer {
	return &Layer{
		Image:   img,
		OffsetX: offsetX,
		OffsetY: offsetY,
	}
}

// LoadLayer loads a patch image from path.
func LoadLayer(path string) (*Layer, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	layer := NewLayer(img, 0, 0)
	layer.Path = path
	return layer, nil
}

// Width returns the patch width in pixels.
func (l *Layer) Width() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the patch height in pixels.
func (l *Layer) Height() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// Opaque reports whether patch pixel (x, y), relative to the patch origin,
// is part of the pasted shape.
func (l *Layer) Opaque(x, y int) bool {
	if l.Mask == nil {
		return true
	}
	return l.Mask.Get(x, y)
}

// Load decodes an image file in any registered format.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode decodes an image in any registered format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Save writes img to path as PNG.
func Save(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// EncodePNG returns img encoded as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToRGBA returns an independent RGBA copy of img whose bounds start at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Uniform returns a w x h RGBA image filled with c.
func Uniform(w, h int, c color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return dst
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
