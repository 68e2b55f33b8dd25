package inpaint

import (
	"image"
	"image/color"
	"testing"

	edimage "poisson-editor/internal/image"
	"poisson-editor/pkg/bitmask"

	"github.com/stretchr/testify/assert"
)

func TestDirectMatcherFindsExactPatch(t *testing.T) {
	img := edimage.Uniform(30, 30, color.RGBA{A: 255})
	// A distinctive 3x3 blob that the target window shares.
	for _, c := range []image.Point{{6, 6}, {22, 20}} {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				img.SetRGBA(c.X+dx, c.Y+dy, color.RGBA{R: 200, G: uint8(50 * (dx + 1)), B: 90, A: 255})
			}
		}
	}
	known := bitmask.New(30, 30)
	known.Fill(true)
	known.Set(22, 20, false)

	candidates := bitmask.New(30, 30)
	for y := 4; y < 26; y++ {
		for x := 4; x < 15; x++ {
			candidates.Set(x, y, true)
		}
	}

	got, ok := DirectMatcher{}.Match(&Search{Image: img, Known: known, Candidates: candidates, Target: image.Pt(22, 20)})
	assert.True(t, ok)
	assert.Equal(t, image.Pt(6, 6), got)
}

func TestDirectMatcherTiesKeepFirst(t *testing.T) {
	img := edimage.Uniform(20, 20, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	known := bitmask.New(20, 20)
	known.Fill(true)
	candidates := bitmask.New(20, 20)
	candidates.Set(9, 5, true)
	candidates.Set(5, 9, true)
	candidates.Set(6, 5, true)

	got, ok := DirectMatcher{}.Match(&Search{Image: img, Known: known, Candidates: candidates, Target: image.Pt(10, 10)})
	assert.True(t, ok)
	assert.Equal(t, image.Pt(6, 5), got)
}

func TestDirectMatcherNoCandidates(t *testing.T) {
	img := edimage.Uniform(12, 12, color.RGBA{A: 255})
	known := bitmask.New(12, 12)
	_, ok := DirectMatcher{}.Match(&Search{Image: img, Known: known, Candidates: bitmask.New(12, 12), Target: image.Pt(6, 6)})
	assert.False(t, ok)
}
