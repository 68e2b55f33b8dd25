package poisson

import (
	"errors"
	"fmt"

	"poisson-editor/internal/logging"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Method names the linear solver used for a blend.
type Method string

const (
	MethodNone     Method = "none"
	MethodCholesky Method = "band-cholesky"
	MethodCG       Method = "conjugate-gradient"
)

// linearSolver solves A X = B for every column of B against one factorization.
type linearSolver interface {
	SolveTo(dst *mat.Dense, b *mat.Dense) error
	Method() Method
}

// factorize picks a solver for s. The scan-order numbering keeps every
// coefficient within a band no wider than the image row, so a banded Cholesky
// factorization is exact and cheap while n*(k+1) stays under the configured
// limit. Larger systems fall back to conjugate gradient.
func factorize(s *system, opts Options) (linearSolver, error) {
	n := s.size()
	k := min(s.bandwidth, n-1)
	if opts.MaxBandEntries <= 0 || n*(k+1) <= opts.MaxBandEntries {
		return newBandSolver(s, k)
	}
	logging.L().Debug("band storage too large, using conjugate gradient",
		zap.Int("vars", n), zap.Int("bandwidth", k))
	return newCGSolver(s, opts), nil
}

// bandSolver wraps a gonum banded Cholesky factorization.
type bandSolver struct {
	chol mat.BandCholesky
}

func newBandSolver(s *system, k int) (*bandSolver, error) {
	a := mat.NewSymBandDense(s.size(), k, nil)
	for p, row := range s.rows {
		for _, e := range row {
			if e.col >= p {
				a.SetSymBand(p, e.col, e.val)
			}
		}
	}
	bs := &bandSolver{}
	if ok := bs.chol.Factorize(a); !ok {
		return nil, fmt.Errorf("%w: matrix is not positive definite", ErrSingularSystem)
	}
	return bs, nil
}

func (bs *bandSolver) SolveTo(dst *mat.Dense, b *mat.Dense) error {
	err := bs.chol.SolveTo(dst, b)
	var cond mat.Condition
	if errors.As(err, &cond) {
		logging.L().Warn("ill-conditioned blend system", zap.Float64("condition", float64(cond)))
		return nil
	}
	return err
}

func (bs *bandSolver) Method() Method { return MethodCholesky }

// cgSolver runs Jacobi-preconditioned conjugate gradient per column.
type cgSolver struct {
	sys       *system
	invDiag   []float64
	tolerance float64
	maxIter   int
}

func newCGSolver(s *system, opts Options) *cgSolver {
	inv := make([]float64, s.size())
	for p, row := range s.rows {
		inv[p] = 1 / row[0].val
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 10 * s.size()
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = DefaultOptions().Tolerance
	}
	return &cgSolver{sys: s, invDiag: inv, tolerance: tol, maxIter: maxIter}
}

func (cg *cgSolver) SolveTo(dst *mat.Dense, b *mat.Dense) error {
	n, cols := b.Dims()
	x := make([]float64, n)
	rhs := make([]float64, n)
	for c := 0; c < cols; c++ {
		mat.Col(rhs, c, b)
		iters, err := cg.solveVec(x, rhs)
		if err != nil {
			return fmt.Errorf("channel %d: %w", c, err)
		}
		logging.L().Debug("conjugate gradient converged", zap.Int("channel", c), zap.Int("iterations", iters))
		dst.SetCol(c, x)
	}
	return nil
}

func (cg *cgSolver) Method() Method { return MethodCG }

// solveVec solves A x = b starting from zero and returns the iteration count.
func (cg *cgSolver) solveVec(x, b []float64) (int, error) {
	n := len(b)
	for i := range x {
		x[i] = 0
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return 0, nil
	}

	r := make([]float64, n)
	copy(r, b)
	z := make([]float64, n)
	floats.MulTo(z, r, cg.invDiag)
	p := make([]float64, n)
	copy(p, z)
	ap := make([]float64, n)
	rz := floats.Dot(r, z)

	for it := 1; it <= cg.maxIter; it++ {
		cg.sys.mulVec(ap, p)
		alpha := rz / floats.Dot(p, ap)
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)
		if floats.Norm(r, 2) <= cg.tolerance*bnorm {
			return it, nil
		}
		floats.MulTo(z, r, cg.invDiag)
		next := floats.Dot(r, z)
		floats.Scale(next/rz, p)
		floats.Add(p, z)
		rz = next
	}
	return cg.maxIter, fmt.Errorf("%w after %d iterations", ErrNotConverged, cg.maxIter)
}
