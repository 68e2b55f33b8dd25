package inpaint

import (
	"context"
	"image"
	"image/color"
	"testing"

	edimage "poisson-editor/internal/image"
	"poisson-editor/pkg/bitmask"
	"poisson-editor/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectRegion(w, h int, r image.Rectangle) *bitmask.Mask {
	m := bitmask.New(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x%2 == 0 {
				img.SetRGBA(x, y, colorutil.Red)
			} else {
				img.SetRGBA(x, y, colorutil.Blue)
			}
		}
	}
	return img
}

func TestFillUniformImage(t *testing.T) {
	bg := color.RGBA{R: 120, G: 90, B: 60, A: 255}
	img := edimage.Uniform(40, 40, bg)
	region := rectRegion(40, 40, image.Rect(15, 15, 25, 25))
	// Scribble over the hole so the fill has to replace it.
	for y := 15; y < 25; y++ {
		for x := 15; x < 25; x++ {
			img.SetRGBA(x, y, colorutil.Green)
		}
	}

	res, err := Fill(img, region)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 100, res.Filled)
	assert.Positive(t, res.Rounds)
	assert.Equal(t, 40*40, res.Known.Count())
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			require.Equal(t, bg, res.Image.RGBAAt(x, y), "pixel (%d, %d)", x, y)
		}
	}
	// The input is left alone.
	assert.Equal(t, colorutil.Green, img.RGBAAt(20, 20))
}

func TestFillReproducesPeriodicTexture(t *testing.T) {
	want := stripes(40, 40)
	img := edimage.ToRGBA(want)
	hole := image.Rect(14, 14, 26, 26)
	for y := hole.Min.Y; y < hole.Max.Y; y++ {
		for x := hole.Min.X; x < hole.Max.X; x++ {
			img.SetRGBA(x, y, colorutil.White)
		}
	}

	res, err := Fill(img, rectRegion(40, 40, hole))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, want.Pix, res.Image.Pix)
}

func TestFillRegionOnBorderStopsImmediately(t *testing.T) {
	img := stripes(20, 20)
	region := rectRegion(20, 20, image.Rect(0, 0, 4, 20))

	res, err := Fill(img, region)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rounds)
	assert.Equal(t, 0, res.Filled)
	assert.Equal(t, 80, res.Remaining)
	assert.False(t, res.Complete())
	assert.Equal(t, img.Pix, res.Image.Pix)

	want := region.Clone()
	want.Invert()
	assert.True(t, want.Equal(res.Known))
}

func TestFillStopsAtPixelLimit(t *testing.T) {
	img := edimage.Uniform(40, 40, colorutil.Blue)
	region := rectRegion(40, 40, image.Rect(15, 15, 25, 25))
	params := DefaultParams()
	params.MaxFilledPixels = 1

	res, err := FillContext(context.Background(), img, region, params)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.Positive(t, res.Filled)
	assert.LessOrEqual(t, res.Filled, WindowArea)
	assert.Equal(t, 100-res.Filled, res.Remaining)
}

func TestFillReportsProgress(t *testing.T) {
	img := edimage.Uniform(30, 30, colorutil.Red)
	region := rectRegion(30, 30, image.Rect(12, 12, 16, 16))
	params := DefaultParams()
	var rounds []Progress
	params.Progress = func(p Progress) { rounds = append(rounds, p) }

	res, err := FillContext(context.Background(), img, region, params)
	require.NoError(t, err)
	require.Len(t, rounds, res.Rounds)
	last := rounds[len(rounds)-1]
	assert.Equal(t, 0, last.Remaining)
	assert.Equal(t, 16, last.Filled)
	for i, p := range rounds {
		assert.Equal(t, i+1, p.Round)
		assert.True(t, p.Target.In(image.Rect(12, 12, 16, 16)), "target %v", p.Target)
	}
}

func TestFillCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := edimage.Uniform(30, 30, colorutil.Red)
	res, err := FillContext(ctx, img, rectRegion(30, 30, image.Rect(12, 12, 16, 16)), DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Rounds)
	assert.Equal(t, 16, res.Remaining)
}

func TestFillSizeMismatch(t *testing.T) {
	img := edimage.Uniform(10, 10, colorutil.Red)

	_, err := Fill(img, bitmask.New(10, 9))
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = Fill(img, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestFillEmptyRegion(t *testing.T) {
	img := stripes(12, 12)
	res, err := Fill(img, bitmask.New(12, 12))
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 0, res.Rounds)
	assert.Equal(t, img.Pix, res.Image.Pix)
}

func TestDataTermFollowsStructure(t *testing.T) {
	// A vertical edge meeting a hole from above has an isophote running down
	// into it, so the front below the edge outranks the flat part.
	img := edimage.Uniform(30, 30, colorutil.Black)
	for y := 0; y < 30; y++ {
		for x := 15; x < 30; x++ {
			img.SetRGBA(x, y, colorutil.White)
		}
	}
	region := rectRegion(30, 30, image.Rect(8, 12, 22, 20))
	f := newFiller(img, region)

	flat := f.dataTerm(9, 12, 0.001)
	edge := f.dataTerm(15, 12, 0.001)
	assert.InDelta(t, 0.001, flat, 1e-12)
	assert.Greater(t, edge, 0.4)
}

func TestCandidatesAvoidFront(t *testing.T) {
	img := edimage.Uniform(30, 30, colorutil.Red)
	region := rectRegion(30, 30, image.Rect(12, 12, 16, 16))
	f := newFiller(img, region)
	c := f.candidates(f.front())

	assert.True(t, c.Get(24, 14))
	assert.True(t, c.Get(4, 25))
	assert.False(t, c.Get(3, 25), "window leaves the image")
	assert.False(t, c.Get(10, 14), "window overlaps the hole")
	assert.False(t, c.Get(21, 14), "window within reach of the front")
	assert.False(t, c.Get(4, 4), "window within reach of the front")
}

func TestFillHoleWithNoDistantSource(t *testing.T) {
	// Every fully known window in these images lies within 8 pixels of the
	// front, so the fill has to take sources closer to the hole.
	tests := []struct {
		name string
		size int
		hole image.Rectangle
	}{
		{"30x30 with 10x10 hole", 30, image.Rect(10, 10, 20, 20)},
		{"24x24 with 2x2 hole", 24, image.Rect(11, 11, 13, 13)},
	}
	bg := color.RGBA{R: 40, G: 150, B: 200, A: 255}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := edimage.Uniform(tt.size, tt.size, bg)
			for y := tt.hole.Min.Y; y < tt.hole.Max.Y; y++ {
				for x := tt.hole.Min.X; x < tt.hole.Max.X; x++ {
					img.SetRGBA(x, y, colorutil.Black)
				}
			}

			res, err := Fill(img, rectRegion(tt.size, tt.size, tt.hole))
			require.NoError(t, err)
			assert.True(t, res.Complete())
			assert.Equal(t, tt.hole.Dx()*tt.hole.Dy(), res.Filled)
			assert.Positive(t, res.Rounds)
			for y := 0; y < tt.size; y++ {
				for x := 0; x < tt.size; x++ {
					require.Equal(t, bg, res.Image.RGBAAt(x, y), "pixel (%d, %d)", x, y)
				}
			}
		})
	}
}

func TestCandidatesFallBackToKnownWindows(t *testing.T) {
	img := edimage.Uniform(30, 30, colorutil.Red)
	f := newFiller(img, rectRegion(30, 30, image.Rect(10, 10, 20, 20)))
	c := f.candidates(f.front())

	assert.True(t, c.Get(4, 4))
	assert.True(t, c.Get(5, 14), "window ends just left of the hole")
	assert.True(t, c.Get(24, 25))
	assert.False(t, c.Get(6, 14), "window overlaps the hole")
	assert.False(t, c.Get(14, 14), "centre inside the hole")
	assert.False(t, c.Get(3, 14), "window leaves the image")
}

func TestCopiedConfidenceIsWindowAverage(t *testing.T) {
	img := edimage.Uniform(30, 30, colorutil.Blue)
	region := rectRegion(30, 30, image.Rect(12, 12, 18, 18))
	f := newFiller(img, region)

	confSum := windowedSum(f.conf, f.w, f.h, HalfWindow)
	target := f.pickTarget(f.front(), confSum, 0.001)
	require.Equal(t, image.Pt(12, 12), target)
	// Window 8..16 squared holds 5x5 hole pixels.
	require.InDelta(t, 56, confSum[target.Y*f.w+target.X], 1e-9)

	n := f.copyPatch(target, image.Pt(4, 4), confSum[target.Y*f.w+target.X]/WindowArea)
	assert.Equal(t, 25, n)
	for y := 12; y < 17; y++ {
		for x := 12; x < 17; x++ {
			assert.True(t, f.known.Get(x, y))
			assert.InDelta(t, 56.0/81.0, f.conf[y*f.w+x], 1e-12, "pixel (%d, %d)", x, y)
		}
	}
	assert.False(t, f.known.Get(17, 12))
	assert.Zero(t, f.conf[12*f.w+17])
	assert.Equal(t, 1.0, f.conf[12*f.w+11])
	assert.Equal(t, 36-25, f.remaining)
}

func TestPriorityUsesWindowedConfidence(t *testing.T) {
	img := edimage.Uniform(30, 30, colorutil.Blue)
	f := newFiller(img, rectRegion(30, 30, image.Rect(12, 12, 18, 18)))
	// Give an edge front pixel the highest single-pixel confidence. Its window
	// still holds fewer known pixels than the corner's.
	f.conf[12*f.w+15] = 1

	confSum := windowedSum(f.conf, f.w, f.h, HalfWindow)
	assert.InDelta(t, 52, confSum[12*f.w+15], 1e-9)
	assert.InDelta(t, 57, confSum[12*f.w+12], 1e-9)
	assert.Greater(t, f.conf[12*f.w+15], f.conf[12*f.w+12])

	assert.Equal(t, image.Pt(12, 12), f.pickTarget(f.front(), confSum, 0.001))
}
