package poisson

import (
	"image"

	"poisson-editor/pkg/geometry"
)

// dir lists the 4-neighbour offsets in stencil order.
var dir = [4]geometry.PointInt{{X: 0, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: -1}, {X: -1, Y: 0}}

// entry is one stored coefficient of the sparse Laplacian.
type entry struct {
	col int
	val float64
}

// system is the sparse Laplacian over the interior pixels of a region mask.
//
//	|Np| f_p - sum(q in Np, q interior) f_q = b_p
//
// Row p holds its diagonal first, followed by -1 for every interior neighbour.
type system struct {
	width, height int

	labels []uint8 // region label per pixel, 0 = background
	index  []int32 // 1-based variable id per pixel, 0 = not a variable
	coords []geometry.PointInt
	rows   [][]entry

	bandwidth int
}

// newSystem enumerates interior pixels in row-major scan order and builds the
// coefficient rows.
func newSystem(labels []uint8, width, height int) *system {
	s := &system{
		width:  width,
		height: height,
		labels: labels,
		index:  make([]int32, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if labels[y*width+x] > 0 {
				s.coords = append(s.coords, geometry.PointInt{X: x, Y: y})
				s.index[y*width+x] = int32(len(s.coords))
			}
		}
	}

	s.rows = make([][]entry, len(s.coords))
	for p, c := range s.coords {
		row := make([]entry, 1, 5)
		neighbors := 0
		for _, d := range dir {
			q := c.Add(d)
			if !s.inBounds(q) {
				continue
			}
			neighbors++
			if v := s.variable(q); v >= 0 {
				row = append(row, entry{col: v, val: -1})
				if band := abs(v - p); band > s.bandwidth {
					s.bandwidth = band
				}
			}
		}
		row[0] = entry{col: p, val: float64(neighbors)}
		s.rows[p] = row
	}
	return s
}

// size returns the number of variables.
func (s *system) size() int {
	return len(s.coords)
}

func (s *system) inBounds(p geometry.PointInt) bool {
	return p.X >= 0 && p.X < s.width && p.Y >= 0 && p.Y < s.height
}

// variable returns the 0-based variable of p, or -1 for background pixels.
func (s *system) variable(p geometry.PointInt) int {
	return int(s.index[p.Y*s.width+p.X]) - 1
}

func (s *system) label(p geometry.PointInt) uint8 {
	return s.labels[p.Y*s.width+p.X]
}

// conflict returns the first interior pixel that touches an interior pixel
// with a different label, i.e. two patches whose unmasked parts overlap.
func (s *system) conflict() (image.Point, bool) {
	for _, c := range s.coords {
		l := s.label(c)
		for _, d := range dir {
			q := c.Add(d)
			if !s.inBounds(q) {
				continue
			}
			if lq := s.label(q); lq != 0 && lq != l {
				return image.Pt(c.X, c.Y), true
			}
		}
	}
	return image.Point{}, false
}

// unanchored returns a pixel of the first connected interior component that
// has no background neighbour. Such a component only has image edges as its
// boundary, which leaves its rows without any Dirichlet term and makes the
// matrix singular.
func (s *system) unanchored() (image.Point, bool) {
	seen := make([]bool, s.size())
	var queue []int
	for start := range s.coords {
		if seen[start] {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)
		anchored := false
		for head := 0; head < len(queue); head++ {
			c := s.coords[queue[head]]
			for _, d := range dir {
				q := c.Add(d)
				if !s.inBounds(q) {
					continue
				}
				v := s.variable(q)
				if v < 0 {
					anchored = true
					continue
				}
				if !seen[v] {
					seen[v] = true
					queue = append(queue, v)
				}
			}
		}
		if !anchored {
			c := s.coords[start]
			return image.Pt(c.X, c.Y), true
		}
	}
	return image.Point{}, false
}

// mulVec computes dst = A x.
func (s *system) mulVec(dst, x []float64) {
	for p, row := range s.rows {
		var sum float64
		for _, e := range row {
			sum += e.val * x[e.col]
		}
		dst[p] = sum
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
