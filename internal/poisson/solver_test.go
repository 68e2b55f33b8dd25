package poisson

import (
	"image"
	"image/color"
	"testing"

	edimage "poisson-editor/internal/image"
	"poisson-editor/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

// gradientImage has a distinct colour at every pixel.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(20 * x), G: uint8(15 * y), B: uint8(5*x + 7*y), A: 255})
		}
	}
	return img
}

func maskWith(w, h int, pixels map[image.Point]uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for p, v := range pixels {
		m.SetGray(p.X, p.Y, color.Gray{Y: v})
	}
	return m
}

func TestBlendEmptyMaskReturnsOriginal(t *testing.T) {
	original := gradientImage(8, 6)
	composite := edimage.Uniform(8, 6, colorutil.Blue)

	res, err := NewSolver(DefaultOptions()).Solve(original, composite, image.NewGray(original.Bounds()))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Variables)
	assert.Equal(t, MethodNone, res.Method)
	assert.Equal(t, original.Pix, res.Image.Pix)
}

func TestBlendOverlappingRegionsFallsBackToComposite(t *testing.T) {
	original := gradientImage(10, 10)
	composite := edimage.Uniform(10, 10, colorutil.Green)
	mask := maskWith(10, 10, map[image.Point]uint8{
		{3, 3}: 1, {4, 3}: 2, {5, 3}: 2,
	})

	res, err := NewSolver(DefaultOptions()).Solve(original, composite, mask)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, composite.Pix, res.Image.Pix)
	assert.NotEqual(t, original.Pix, res.Image.Pix)
}

func TestBlendSinglePixelKeepsOriginal(t *testing.T) {
	original := gradientImage(5, 5)
	composite := edimage.Uniform(5, 5, colorutil.White)

	// Interior and edge pixels: |Np| f = |Np| original(p), so f = original(p).
	for _, p := range []image.Point{{2, 2}, {0, 2}, {4, 4}} {
		mask := maskWith(5, 5, map[image.Point]uint8{p: 9})
		out, err := Blend(original, composite, mask)
		require.NoError(t, err)
		assert.Equal(t, original.RGBAAt(p.X, p.Y), out.RGBAAt(p.X, p.Y), "pixel %v", p)
	}
}

func TestBlendTwoPixelSystem(t *testing.T) {
	// Two neighbours p=(2,2), q=(3,2) over a flat grey original:
	//   4fp - fq = 3*100 + 100
	//   4fq - fp = 3*100 - 100
	// so fp+fq = 200 and 5(fp-fq) = 200, giving fp = 120 and fq = 80.
	original := edimage.Uniform(6, 5, gray(100))
	composite := edimage.Uniform(6, 5, gray(100))
	composite.SetRGBA(2, 2, gray(200))
	mask := maskWith(6, 5, map[image.Point]uint8{{2, 2}: 1, {3, 2}: 1})

	res, err := NewSolver(DefaultOptions()).Solve(original, composite, mask)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Variables)
	assert.Equal(t, MethodCholesky, res.Method)
	assert.Equal(t, gray(120), res.Image.RGBAAt(2, 2))
	assert.Equal(t, gray(80), res.Image.RGBAAt(3, 2))
	assert.Equal(t, gray(100), res.Image.RGBAAt(1, 2))
}

func TestBlendRedCanvasBluePatch(t *testing.T) {
	original := edimage.Uniform(10, 10, colorutil.Red)
	composite := edimage.Uniform(10, 10, colorutil.Red)
	pixels := map[image.Point]uint8{}
	for y := 4; y <= 5; y++ {
		for x := 4; x <= 5; x++ {
			composite.SetRGBA(x, y, colorutil.Blue)
			pixels[image.Pt(x, y)] = 1
		}
	}

	out, err := Blend(original, composite, maskWith(10, 10, pixels))
	require.NoError(t, err)
	// A flat patch carries no gradient, so the boundary pulls it to red.
	for p := range pixels {
		assert.Equal(t, colorutil.Red, out.RGBAAt(p.X, p.Y), "pixel %v", p)
	}
	assert.Equal(t, original.Pix, out.Pix)
}

func TestBlendShiftsPatchToBackground(t *testing.T) {
	// A 5x5 patch with a 50 border and a 200 centre pasted on an 80 canvas.
	// Its gradients are kept and its level is lifted by 30 to match.
	original := edimage.Uniform(11, 11, gray(80))
	composite := edimage.Uniform(11, 11, gray(80))
	pixels := map[image.Point]uint8{}
	for y := 3; y <= 7; y++ {
		for x := 3; x <= 7; x++ {
			composite.SetRGBA(x, y, gray(50))
			pixels[image.Pt(x, y)] = 1
		}
	}
	composite.SetRGBA(5, 5, gray(200))

	out, err := Blend(original, composite, maskWith(11, 11, pixels))
	require.NoError(t, err)
	for y := 0; y < 11; y++ {
		for x := 0; x < 11; x++ {
			want := gray(80)
			if x == 5 && y == 5 {
				want = gray(230)
			}
			assert.Equal(t, want, out.RGBAAt(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestBlendSeparateRegionsSolveIndependently(t *testing.T) {
	original := edimage.Uniform(12, 6, gray(40))
	composite := edimage.Uniform(12, 6, gray(40))
	mask := maskWith(12, 6, map[image.Point]uint8{
		{2, 2}: 1, {3, 2}: 1,
		{8, 2}: 2, {9, 2}: 2,
	})

	res, err := NewSolver(DefaultOptions()).Solve(original, composite, mask)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, 4, res.Variables)
	assert.Equal(t, original.Pix, res.Image.Pix)
}

func TestBlendCoveringWholeImageIsSingular(t *testing.T) {
	original := gradientImage(4, 4)
	mask := image.NewGray(original.Bounds())
	for i := range mask.Pix {
		mask.Pix[i] = 1
	}

	_, err := Blend(original, original, mask)
	assert.ErrorIs(t, err, ErrSingularSystem)
}

func TestBlendSizeMismatch(t *testing.T) {
	_, err := Blend(gradientImage(4, 4), gradientImage(5, 4), image.NewGray(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestConjugateGradientMatchesCholesky(t *testing.T) {
	original := gradientImage(16, 14)
	composite := edimage.ToRGBA(original)
	pixels := map[image.Point]uint8{}
	for y := 3; y < 11; y++ {
		for x := 4; x < 13; x++ {
			composite.SetRGBA(x, y, color.RGBA{R: uint8(7 * x * y), G: 200, B: uint8(30 * y), A: 255})
			pixels[image.Pt(x, y)] = 1
		}
	}
	mask := maskWith(16, 14, pixels)

	direct, err := NewSolver(DefaultOptions()).Solve(original, composite, mask)
	require.NoError(t, err)
	require.Equal(t, MethodCholesky, direct.Method)

	iterative, err := NewSolver(Options{MaxBandEntries: 1, Tolerance: 1e-10}).Solve(original, composite, mask)
	require.NoError(t, err)
	require.Equal(t, MethodCG, iterative.Method)

	for i := range direct.Image.Pix {
		assert.InDelta(t, direct.Image.Pix[i], iterative.Image.Pix[i], 1, "byte %d", i)
	}
}

func TestDefaultBandLimitSendsWideRegionsToConjugateGradient(t *testing.T) {
	assert.Equal(t, DefaultMaxBandEntries, DefaultOptions().MaxBandEntries)
	assert.LessOrEqual(t, DefaultMaxBandEntries*8, 64<<20, "band storage bytes")

	// A strip three rows high and 2998 wide couples each pixel to the one a
	// full row away: 8994 variables with bandwidth 2998.
	bg := color.RGBA{R: 100, G: 100, B: 100, A: 255}
	original := edimage.Uniform(3000, 5, bg)
	mask := image.NewGray(image.Rect(0, 0, 3000, 5))
	for y := 1; y < 4; y++ {
		for x := 1; x < 2999; x++ {
			mask.SetGray(x, y, color.Gray{Y: 1})
		}
	}

	res, err := NewSolver(DefaultOptions()).Solve(original, original, mask)
	require.NoError(t, err)
	assert.Equal(t, MethodCG, res.Method)
	assert.Equal(t, 8994, res.Variables)
	assert.Equal(t, bg, res.Image.RGBAAt(1500, 2))
}

func TestConjugateGradientIterationCap(t *testing.T) {
	original := gradientImage(16, 16)
	composite := edimage.Uniform(16, 16, colorutil.White)
	pixels := map[image.Point]uint8{}
	for y := 2; y < 14; y++ {
		for x := 2; x < 14; x++ {
			pixels[image.Pt(x, y)] = 3
		}
	}

	_, err := NewSolver(Options{MaxBandEntries: 1, Tolerance: 1e-12, MaxIterations: 1}).
		Solve(original, composite, maskWith(16, 16, pixels))
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestSolveComposite(t *testing.T) {
	canvas := edimage.Uniform(10, 10, colorutil.Red)
	c := edimage.NewComposite(canvas)
	c.AddLayer(edimage.NewLayer(edimage.Uniform(2, 2, colorutil.Blue), 4, 4))

	res, err := NewSolver(DefaultOptions()).SolveComposite(c)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Variables)
	assert.Equal(t, colorutil.Red, res.Image.RGBAAt(4, 4))
}
