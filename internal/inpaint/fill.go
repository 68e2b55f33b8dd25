// Package inpaint erases a region of an image and synthesizes its content by
// copying 9x9 patches from the rest of the image, filling structure first.
//
// Every round picks the fill front pixel with the highest priority (windowed
// confidence times data term), finds the known source window that best
// matches it, and copies the missing pixels of its window from that source.
package inpaint

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	edimage "poisson-editor/internal/image"
	"poisson-editor/internal/logging"
	"poisson-editor/pkg/bitmask"
	"poisson-editor/pkg/colorutil"

	"go.uber.org/zap"
)

// ErrInvalidGeometry is returned when the region does not match the image.
var ErrInvalidGeometry = bitmask.ErrInvalidGeometry

// Result is the outcome of a fill.
//
// Pixels within HalfWindow of the image border can never be a fill front, so
// a region touching the border is only partly filled. Remaining counts the
// region pixels left untouched; callers should check it.
type Result struct {
	Image     *image.RGBA
	Known     *bitmask.Mask // pixels that are original or synthesized
	Remaining int
	Rounds    int
	Filled    int
}

// Complete reports whether the whole region was synthesized.
func (r *Result) Complete() bool {
	return r.Remaining == 0
}

// Fill synthesizes the pixels of img marked in region with DefaultParams.
func Fill(img image.Image, region *bitmask.Mask) (*Result, error) {
	return FillContext(context.Background(), img, region, DefaultParams())
}

// FillContext synthesizes the pixels of img marked in region. It checks ctx
// before every round; on cancellation it returns the partial result together
// with the context error.
func FillContext(ctx context.Context, img image.Image, region *bitmask.Mask, params Params) (*Result, error) {
	b := img.Bounds()
	if region == nil {
		return nil, fmt.Errorf("%w: nil region", ErrInvalidGeometry)
	}
	if region.Width() != b.Dx() || region.Height() != b.Dy() {
		return nil, fmt.Errorf("%w: image %dx%d, region %dx%d",
			ErrInvalidGeometry, b.Dx(), b.Dy(), region.Width(), region.Height())
	}
	matcher := params.Matcher
	if matcher == nil {
		matcher = DirectMatcher{}
	}
	eps := params.DataEpsilon
	if eps <= 0 {
		eps = DefaultParams().DataEpsilon
	}

	log := logging.L()
	start := time.Now()
	f := newFiller(img, region)

	for {
		if err := ctx.Err(); err != nil {
			return f.result(), err
		}
		if params.MaxFilledPixels > 0 && f.filled >= params.MaxFilledPixels {
			log.Info("fill limit reached", zap.Int("filled", f.filled), zap.Int("limit", params.MaxFilledPixels))
			break
		}

		front := f.front()
		if len(front) == 0 {
			break
		}
		confSum := windowedSum(f.conf, f.w, f.h, HalfWindow)
		target := f.pickTarget(front, confSum, eps)

		source, ok := matcher.Match(&Search{
			Image:      f.img,
			Known:      f.known,
			Candidates: f.candidates(front),
			Target:     target,
		})
		if !ok {
			log.Warn("no source patch available", zap.Int("remaining", f.remaining))
			break
		}

		n := f.copyPatch(target, source, confSum[target.Y*f.w+target.X]/WindowArea)
		f.rounds++
		log.Debug("fill round",
			zap.Int("round", f.rounds),
			zap.Stringer("target", target),
			zap.Stringer("source", source),
			zap.Int("copied", n),
			zap.Int("remaining", f.remaining))

		if params.Progress != nil {
			params.Progress(Progress{
				Round:     f.rounds,
				Filled:    f.filled,
				Remaining: f.remaining,
				Target:    target,
				Source:    source,
			})
		}
	}

	if f.remaining > 0 {
		log.Info("fill stopped with region pixels left", zap.Int("remaining", f.remaining))
	}
	log.Debug("fill done", zap.Int("rounds", f.rounds), zap.Int("filled", f.filled),
		zap.Duration("elapsed", time.Since(start)))
	return f.result(), nil
}

// filler holds the per-call state of one fill.
type filler struct {
	w, h  int
	img   *image.RGBA
	known *bitmask.Mask
	conf  []float64 // 1 for original pixels, propagated for synthesized ones
	lum   []float64

	remaining int
	filled    int
	rounds    int
}

func newFiller(img image.Image, region *bitmask.Mask) *filler {
	f := &filler{
		w:         region.Width(),
		h:         region.Height(),
		img:       edimage.ToRGBA(img),
		known:     region.Clone(),
		remaining: region.Count(),
	}
	f.known.Invert()
	f.conf = make([]float64, f.w*f.h)
	f.lum = make([]float64, f.w*f.h)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			if f.known.Get(x, y) {
				f.conf[y*f.w+x] = 1
			}
			f.updateLum(x, y)
		}
	}
	return f
}

func (f *filler) result() *Result {
	return &Result{
		Image:     f.img,
		Known:     f.known,
		Remaining: f.remaining,
		Rounds:    f.rounds,
		Filled:    f.filled,
	}
}

func (f *filler) updateLum(x, y int) {
	i := f.img.PixOffset(x, y)
	f.lum[y*f.w+x] = colorutil.Luminance(f.img.Pix[i], f.img.Pix[i+1], f.img.Pix[i+2])
}

func (f *filler) knownAt(x, y int) bool {
	return x >= 0 && x < f.w && y >= 0 && y < f.h && f.known.Get(x, y)
}

// front lists, in scan order, the unknown pixels with a full window and at
// least one known 4-neighbour.
func (f *filler) front() []image.Point {
	var front []image.Point
	for y := HalfWindow; y < f.h-HalfWindow; y++ {
		for x := HalfWindow; x < f.w-HalfWindow; x++ {
			if f.known.Get(x, y) {
				continue
			}
			if f.known.Get(x-1, y) || f.known.Get(x+1, y) || f.known.Get(x, y-1) || f.known.Get(x, y+1) {
				front = append(front, image.Pt(x, y))
			}
		}
	}
	return front
}

// pickTarget returns the first front pixel of maximum priority.
func (f *filler) pickTarget(front []image.Point, confSum []float64, eps float64) image.Point {
	best := front[0]
	bestPriority := -1.0
	for _, p := range front {
		priority := confSum[p.Y*f.w+p.X] * f.dataTerm(p.X, p.Y, eps)
		if priority > bestPriority {
			bestPriority = priority
			best = p
		}
	}
	return best
}

// dataTerm measures how strongly image structure flows into the front at
// (x, y): the largest projection of a known isophote in the window onto the
// front normal, scaled to 0-1 and floored at eps.
func (f *filler) dataTerm(x, y int, eps float64) float64 {
	nx := indicator(f.knownAt(x+1, y)) - indicator(f.knownAt(x-1, y))
	ny := indicator(f.knownAt(x, y+1)) - indicator(f.knownAt(x, y-1))
	norm := math.Hypot(nx, ny)
	if norm == 0 {
		return eps
	}
	nx, ny = nx/norm, ny/norm

	var best float64
	for qy := y - HalfWindow; qy <= y+HalfWindow; qy++ {
		for qx := x - HalfWindow; qx <= x+HalfWindow; qx++ {
			if !f.knownAt(qx, qy) || !f.knownAt(qx-1, qy) || !f.knownAt(qx+1, qy) ||
				!f.knownAt(qx, qy-1) || !f.knownAt(qx, qy+1) {
				continue
			}
			i := qy*f.w + qx
			gx := (f.lum[i+1] - f.lum[i-1]) / 2
			gy := (f.lum[i+f.w] - f.lum[i-f.w]) / 2
			// Isophote is the gradient rotated by 90 degrees.
			best = max(best, math.Abs(-gy*nx+gx*ny))
		}
	}
	return max(best/255, eps)
}

// candidates marks the source centres whose window is entirely known and
// disjoint from the HalfWindow neighbourhood of every front pixel, so sources
// never overlap patches that later rounds may still rewrite. When the hole
// leaves no such centre, every centre with a fully known window qualifies;
// such a window holds no front pixel, so its centre is more than HalfWindow
// from the front.
func (f *filler) candidates(front []image.Point) *bitmask.Mask {
	knownField := make([]float64, f.w*f.h)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			knownField[y*f.w+x] = indicator(f.known.Get(x, y))
		}
	}
	frontField := make([]float64, f.w*f.h)
	for _, p := range front {
		frontField[p.Y*f.w+p.X] = 1
	}
	knownSum := newSummedArea(knownField, f.w, f.h)
	frontSum := newSummedArea(frontField, f.w, f.h)

	strict := bitmask.New(f.w, f.h)
	relaxed := bitmask.New(f.w, f.h)
	found := false
	for y := HalfWindow; y < f.h-HalfWindow; y++ {
		for x := HalfWindow; x < f.w-HalfWindow; x++ {
			if knownSum.window(x, y, HalfWindow) != WindowArea {
				continue
			}
			relaxed.Set(x, y, true)
			if frontSum.window(x, y, 2*HalfWindow) == 0 {
				strict.Set(x, y, true)
				found = true
			}
		}
	}
	if found {
		return strict
	}
	return relaxed
}

// copyPatch copies the unknown pixels of the target window from the same
// offsets around source and returns how many were filled.
func (f *filler) copyPatch(target, source image.Point, confidence float64) int {
	n := 0
	for dy := -HalfWindow; dy <= HalfWindow; dy++ {
		for dx := -HalfWindow; dx <= HalfWindow; dx++ {
			x, y := target.X+dx, target.Y+dy
			if f.known.Get(x, y) {
				continue
			}
			dst := f.img.PixOffset(x, y)
			src := f.img.PixOffset(source.X+dx, source.Y+dy)
			copy(f.img.Pix[dst:dst+4], f.img.Pix[src:src+4])
			f.known.Set(x, y, true)
			f.conf[y*f.w+x] = confidence
			f.updateLum(x, y)
			n++
		}
	}
	f.filled += n
	f.remaining -= n
	return n
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
