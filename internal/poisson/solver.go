// Package poisson blends pasted patches into a background image by solving the
// discrete Poisson equation over the patch interiors with a mixed gradient
// guidance field.
package poisson

import (
	"errors"
	"fmt"
	"image"
	"time"

	edimage "poisson-editor/internal/image"
	"poisson-editor/internal/logging"
	"poisson-editor/pkg/colorutil"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidGeometry is returned when the inputs differ in size.
	ErrInvalidGeometry = errors.New("poisson: image sizes differ")
	// ErrSingularSystem is returned when the Laplacian cannot be factorized,
	// e.g. a region covers its whole connected area without background.
	ErrSingularSystem = errors.New("poisson: singular system")
	// ErrNotConverged is returned when the iterative solver gives up.
	ErrNotConverged = errors.New("poisson: solver did not converge")
)

// DefaultMaxBandEntries keeps the band storage of one solve at 64 MiB
// (8-byte entries). The server runs several solves at once.
const DefaultMaxBandEntries = 8 << 20

// Options configures the linear solve.
type Options struct {
	// MaxBandEntries bounds the banded Cholesky storage (variables times
	// bandwidth). Larger systems use conjugate gradient. Zero means no bound.
	MaxBandEntries int
	// Tolerance is the relative residual at which conjugate gradient stops.
	Tolerance float64
	// MaxIterations caps conjugate gradient. Zero means 10x the variable count.
	MaxIterations int
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		MaxBandEntries: DefaultMaxBandEntries,
		Tolerance:      1e-6,
	}
}

// Result is the outcome of a blend.
type Result struct {
	Image     *image.RGBA
	Variables int    // interior pixels solved
	Fallback  bool   // patches overlapped, Image is the naive composite
	Method    Method // solver used
}

// Solver blends patches with fixed options. It holds no per-call state and is
// safe for concurrent use.
type Solver struct {
	opts Options
}

// NewSolver creates a Solver.
func NewSolver(opts Options) *Solver {
	return &Solver{opts: opts}
}

// Blend solves with DefaultOptions and returns the blended image.
func Blend(original, composite, regionMask image.Image) (*image.RGBA, error) {
	res, err := NewSolver(DefaultOptions()).Solve(original, composite, regionMask)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Solve blends composite into original inside regionMask.
//
// regionMask groups pixels by brightness: 0 is background and every distinct
// positive value is one patch. The output equals original outside the mask.
// Inside, each pixel p satisfies
//
//	|Np| f_p - sum(q interior) f_q = sum(q background) original(p) + sum(q interior) v_pq
//
// where v_pq is whichever of the original and composite gradients p-q has the
// larger magnitude. When two different labels touch the solve is ill-posed and
// the naive composite is returned with Fallback set.
func (s *Solver) Solve(original, composite, regionMask image.Image) (*Result, error) {
	ob, cb, mb := original.Bounds(), composite.Bounds(), regionMask.Bounds()
	if ob.Size() != cb.Size() || ob.Size() != mb.Size() {
		return nil, fmt.Errorf("%w: original %v, composite %v, mask %v",
			ErrInvalidGeometry, ob.Size(), cb.Size(), mb.Size())
	}
	w, h := ob.Dx(), ob.Dy()
	log := logging.L()

	start := time.Now()
	orig := edimage.ToRGBA(original)
	patch := edimage.ToRGBA(composite)
	sys := newSystem(labelsOf(regionMask), w, h)
	n := sys.size()
	log.Debug("blend: mark pixels", zap.Int("vars", n), zap.Duration("elapsed", time.Since(start)))

	if n == 0 {
		return &Result{Image: orig, Method: MethodNone}, nil
	}
	if at, ok := sys.conflict(); ok {
		log.Warn("unmasked parts of patches overlap, falling back to naive copy-paste",
			zap.Int("x", at.X), zap.Int("y", at.Y))
		return &Result{Image: patch, Variables: n, Fallback: true, Method: MethodNone}, nil
	}
	if at, ok := sys.unanchored(); ok {
		return nil, fmt.Errorf("%w: region at (%d, %d) has no background boundary",
			ErrSingularSystem, at.X, at.Y)
	}

	start = time.Now()
	solver, err := factorize(sys, s.opts)
	if err != nil {
		return nil, err
	}
	log.Debug("blend: factorize", zap.String("method", string(solver.Method())),
		zap.Int("bandwidth", sys.bandwidth), zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	b := mat.NewDense(n, 3, nil)
	for p, c := range sys.coords {
		rhs := guidance(sys, orig, patch, c.X, c.Y)
		for ch := 0; ch < 3; ch++ {
			b.Set(p, ch, float64(rhs[ch]))
		}
	}
	log.Debug("blend: bias vectors", zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	x := mat.NewDense(n, 3, nil)
	if err := solver.SolveTo(x, b); err != nil {
		return nil, fmt.Errorf("poisson solve: %w", err)
	}
	log.Debug("blend: solve", zap.Duration("elapsed", time.Since(start)))

	out := orig
	for p, c := range sys.coords {
		i := out.PixOffset(c.X, c.Y)
		for ch := 0; ch < 3; ch++ {
			out.Pix[i+ch] = colorutil.ClampByte(x.At(p, ch))
		}
		out.Pix[i+3] = 255
	}

	return &Result{Image: out, Variables: n, Method: solver.Method()}, nil
}

// SolveComposite renders c's patches over its canvas and blends them in, each
// patch being one region.
func (s *Solver) SolveComposite(c *edimage.Composite) (*Result, error) {
	composite, regions := c.Render()
	return s.Solve(c.Canvas, composite, regions)
}

// guidance accumulates the right-hand side of pixel (x, y) for R, G and B in
// single precision. A background neighbour contributes the original colour at
// p itself; an interior neighbour contributes the stronger gradient.
func guidance(sys *system, orig, patch *image.RGBA, x, y int) [3]float32 {
	var val [3]float32
	pi := orig.PixOffset(x, y)
	for _, d := range dir {
		qx, qy := x+d.X, y+d.Y
		if qx < 0 || qx >= sys.width || qy < 0 || qy >= sys.height {
			continue
		}
		if sys.labels[qy*sys.width+qx] == 0 {
			for ch := 0; ch < 3; ch++ {
				val[ch] += float32(orig.Pix[pi+ch])
			}
			continue
		}
		qi := orig.PixOffset(qx, qy)
		for ch := 0; ch < 3; ch++ {
			gradOrig := float32(orig.Pix[pi+ch]) - float32(orig.Pix[qi+ch])
			gradPatch := float32(patch.Pix[pi+ch]) - float32(patch.Pix[qi+ch])
			if abs32(gradOrig) > abs32(gradPatch) {
				val[ch] += gradOrig
			} else {
				val[ch] += gradPatch
			}
		}
	}
	return val
}

// labelsOf reads the region label (brightness) of every mask pixel.
func labelsOf(mask image.Image) []uint8 {
	b := mask.Bounds()
	labels := make([]uint8, b.Dx()*b.Dy())
	if g, ok := mask.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(labels[y*b.Dx():(y+1)*b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return labels
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			labels[y*b.Dx()+x] = colorutil.Value(mask.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return labels
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
