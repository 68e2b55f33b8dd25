package geometry

import (
	"poisson-editor/pkg/bitmask"
)

// fourNeighbors are the 4-connected offsets.
var fourNeighbors = [4]PointInt{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

// RasterizeLasso converts a closed lasso path into a mask covering the path's
// aligned bounding rectangle. The returned rectangle gives the mask's position
// in image coordinates.
//
// The outline is drawn with Bresenham lines between consecutive vertices
// (closing back to the first). Pixels whose 4-connected component cannot
// reach the edge of the bounding rectangle are interior and are set as well.
func RasterizeLasso(path []Point2D) (*bitmask.Mask, RectInt) {
	bounds := AlignedRect(path)
	if bounds.Empty() {
		return bitmask.New(0, 0), bounds
	}
	w, h := bounds.Width, bounds.Height
	origin := PointInt{X: bounds.X, Y: bounds.Y}

	inside := make([]bool, w*h)
	for i := range path {
		p0 := path[i].Round().Sub(origin)
		p1 := path[(i+1)%len(path)].Round().Sub(origin)
		drawLine(inside, w, h, p0, p1)
	}

	visited := make([]bool, w*h)
	copy(visited, inside)
	var queue []PointInt
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] {
				continue
			}
			visited[y*w+x] = true
			queue = append(queue[:0], PointInt{X: x, Y: y})
			inner := true
			for head := 0; head < len(queue); head++ {
				p := queue[head]
				for _, d := range fourNeighbors {
					n := p.Add(d)
					if n.X < 0 || n.X >= w || n.Y < 0 || n.Y >= h {
						inner = false
						continue
					}
					if !visited[n.Y*w+n.X] {
						visited[n.Y*w+n.X] = true
						queue = append(queue, n)
					}
				}
			}
			if inner {
				for _, p := range queue {
					inside[p.Y*w+p.X] = true
				}
			}
		}
	}

	mask := bitmask.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if inside[y*w+x] {
				mask.Set(x, y, true)
			}
		}
	}
	return mask, bounds
}

// drawLine marks the pixels of the segment p0-p1 with Bresenham's algorithm.
// Points outside the w x h grid are skipped.
func drawLine(grid []bool, w, h int, p0, p1 PointInt) {
	dx := abs(p1.X - p0.X)
	dy := -abs(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	e := dx + dy
	x, y := p0.X, p0.Y
	for {
		if x >= 0 && x < w && y >= 0 && y < h {
			grid[y*w+x] = true
		}
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
