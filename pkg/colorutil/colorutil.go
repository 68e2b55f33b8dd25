// Package colorutil provides shared color utilities for the editor.
package colorutil

import (
	"image/color"
	"math"
)

// Common colors used in tests and tools.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

// RGB8 returns the 8-bit red, green and blue channels of c.
func RGB8(c color.Color) (r, g, b uint8) {
	r32, g32, b32, _ := c.RGBA()
	return uint8(r32 >> 8), uint8(g32 >> 8), uint8(b32 >> 8)
}

// Value returns the HSV value (brightness) of c in 0-255, i.e. the largest
// 8-bit channel.
func Value(c color.Color) uint8 {
	r, g, b := RGB8(c)
	return max(r, g, b)
}

// Luminance returns the Rec. 601 luma of an 8-bit RGB triple in 0-255.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// ClampByte rounds v half away from zero and clamps it to 0-255.
func ClampByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}
