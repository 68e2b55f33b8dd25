package inpaint

import (
	"image"
	"math"

	"poisson-editor/pkg/bitmask"
)

// Search is one patch lookup: find the centre among Candidates whose window
// best matches the known pixels of the window around Target.
type Search struct {
	Image      *image.RGBA
	Known      *bitmask.Mask
	Candidates *bitmask.Mask // valid source centres
	Target     image.Point
}

// Matcher finds the source patch for a fill round. Implementations score by
// the sum of squared channel differences over the target's known pixels and
// return the first minimum in row-major scan order.
type Matcher interface {
	Match(s *Search) (image.Point, bool)
}

// DirectMatcher compares every candidate window pixel by pixel.
type DirectMatcher struct{}

// Match implements Matcher.
func (DirectMatcher) Match(s *Search) (image.Point, bool) {
	img := s.Image
	offsets, values := targetPixels(s)

	best := image.Pt(-1, -1)
	bestErr := math.MaxInt
	w, h := s.Candidates.Width(), s.Candidates.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !s.Candidates.Get(x, y) {
				continue
			}
			base := img.PixOffset(x, y)
			sum := 0
			for i, off := range offsets {
				for ch := 0; ch < 3; ch++ {
					d := int(img.Pix[base+off+ch]) - values[3*i+ch]
					sum += d * d
				}
				if sum >= bestErr {
					break
				}
			}
			if sum < bestErr {
				bestErr = sum
				best = image.Pt(x, y)
			}
		}
	}
	return best, best.X >= 0
}

// targetPixels lists the Pix offsets, relative to a window centre, of the
// known pixels around the target together with their RGB values.
func targetPixels(s *Search) ([]int, []int) {
	img := s.Image
	centre := img.PixOffset(s.Target.X, s.Target.Y)
	var offsets, values []int
	for dy := -HalfWindow; dy <= HalfWindow; dy++ {
		for dx := -HalfWindow; dx <= HalfWindow; dx++ {
			x, y := s.Target.X+dx, s.Target.Y+dy
			if !s.Known.Get(x, y) {
				continue
			}
			i := img.PixOffset(x, y)
			offsets = append(offsets, i-centre)
			values = append(values, int(img.Pix[i]), int(img.Pix[i+1]), int(img.Pix[i+2]))
		}
	}
	return offsets, values
}
