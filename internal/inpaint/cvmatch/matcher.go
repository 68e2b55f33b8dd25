// Package cvmatch scores inpainting source patches with OpenCV correlation.
//
// The sum of squared differences between a source window S and the known
// pixels K of the target window T expands to
//
//	sum_K |S|^2 - 2 sum_K S.T + sum_K |T|^2
//
// The last term is the same for every source, so two Filter2D passes (the
// squared norm against the known indicator, and each channel against the
// target values) score every centre of the image at once.
//
// The scores are float32, so sums of squared differences that are nearly
// equal can come out in the wrong order. Every candidate scoring within
// rescoreSlack of the best is compared again exactly, which keeps the result
// identical to inpaint.DirectMatcher.
package cvmatch

import (
	"image"
	"math"

	"poisson-editor/internal/inpaint"
	"poisson-editor/pkg/bitmask"

	"gocv.io/x/gocv"
)

// rescoreSlack bounds the float32 error of a score: 1e-4 of the largest
// possible sum over a window.
const rescoreSlack = 1e-4 * inpaint.WindowArea * 3 * 255 * 255

// Matcher implements inpaint.Matcher with gocv.Filter2D.
type Matcher struct{}

// New creates a Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Match implements inpaint.Matcher.
func (m *Matcher) Match(s *inpaint.Search) (image.Point, bool) {
	img := s.Image
	w, h := s.Candidates.Width(), s.Candidates.Height()

	squared := zeros(h, w)
	defer squared.Close()
	var channels [3]gocv.Mat
	for ch := range channels {
		channels[ch] = zeros(h, w)
		defer channels[ch].Close()
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !s.Known.Get(x, y) {
				continue
			}
			i := img.PixOffset(x, y)
			var norm float32
			for ch := range channels {
				v := float32(img.Pix[i+ch])
				channels[ch].SetFloatAt(y, x, v)
				norm += v * v
			}
			squared.SetFloatAt(y, x, norm)
		}
	}

	// Kernels indexed by window offset; unknown target pixels stay zero.
	knownKernel := zeros(inpaint.WindowSize, inpaint.WindowSize)
	defer knownKernel.Close()
	var targetKernels [3]gocv.Mat
	for ch := range targetKernels {
		targetKernels[ch] = zeros(inpaint.WindowSize, inpaint.WindowSize)
		defer targetKernels[ch].Close()
	}
	for dy := -inpaint.HalfWindow; dy <= inpaint.HalfWindow; dy++ {
		for dx := -inpaint.HalfWindow; dx <= inpaint.HalfWindow; dx++ {
			x, y := s.Target.X+dx, s.Target.Y+dy
			if x < 0 || x >= w || y < 0 || y >= h || !s.Known.Get(x, y) {
				continue
			}
			row, col := dy+inpaint.HalfWindow, dx+inpaint.HalfWindow
			knownKernel.SetFloatAt(row, col, 1)
			i := img.PixOffset(x, y)
			for ch := range targetKernels {
				targetKernels[ch].SetFloatAt(row, col, float32(img.Pix[i+ch]))
			}
		}
	}

	score := gocv.NewMat()
	defer score.Close()
	gocv.Filter2D(squared, &score, gocv.MatTypeCV32F, knownKernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	cross := gocv.NewMat()
	defer cross.Close()
	for ch := range channels {
		gocv.Filter2D(channels[ch], &cross, gocv.MatTypeCV32F, targetKernels[ch], image.Pt(-1, -1), 0, gocv.BorderDefault)
		gocv.AddWeighted(score, 1, cross, -2, 0, &score)
	}

	bestScore := float32(math.Inf(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if s.Candidates.Get(x, y) {
				bestScore = min(bestScore, score.GetFloatAt(y, x))
			}
		}
	}
	if math.IsInf(float64(bestScore), 1) {
		return image.Pt(-1, -1), false
	}

	near := bitmask.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if s.Candidates.Get(x, y) && score.GetFloatAt(y, x) <= bestScore+rescoreSlack {
				near.Set(x, y, true)
			}
		}
	}
	return inpaint.DirectMatcher{}.Match(&inpaint.Search{
		Image:      s.Image,
		Known:      s.Known,
		Candidates: near,
		Target:     s.Target,
	})
}

// zeros returns a zero-filled single-channel float matrix.
func zeros(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return m
}
