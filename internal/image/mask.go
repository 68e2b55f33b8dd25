package image

import (
	"fmt"
	"image"
	"image/color"

	"poisson-editor/pkg/bitmask"
	"poisson-editor/pkg/colorutil"
	"poisson-editor/pkg/geometry"
)

// MaskFromImage returns a mask with a bit set for every pixel of img whose
// brightness is non-zero.
func MaskFromImage(img image.Image) *bitmask.Mask {
	b := img.Bounds()
	m := bitmask.New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if colorutil.Value(img.At(b.Min.X+x, b.Min.Y+y)) > 0 {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// MaskImage renders m as a grey image, white where set.
func MaskImage(m *bitmask.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width(), m.Height()))
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if m.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// Selection accumulates lasso masks into a canvas-sized region mask.
type Selection struct {
	mask *bitmask.Mask
}

// NewSelection creates an empty selection for a width x height canvas.
func NewSelection(width, height int) *Selection {
	return &Selection{mask: bitmask.New(width, height)}
}

// Mask returns the accumulated mask. It aliases the selection.
func (s *Selection) Mask() *bitmask.Mask {
	return s.mask
}

// Empty reports whether nothing is selected.
func (s *Selection) Empty() bool {
	return s.mask.Count() == 0
}

// Add unions part into the selection at its position.
func (s *Selection) Add(part *bitmask.Mask, at geometry.PointInt) error {
	part, at, err := s.clip(part, at)
	if err != nil || part == nil {
		return err
	}
	s.mask.Or(part, at.X, at.Y)
	return nil
}

// Replace overwrites the selection inside part's rectangle with part.
func (s *Selection) Replace(part *bitmask.Mask, at geometry.PointInt) error {
	part, at, err := s.clip(part, at)
	if err != nil || part == nil {
		return err
	}
	s.mask.Overwrite(part, at.X, at.Y)
	return nil
}

// Intersect keeps only selected pixels that are also set in part. Pixels
// outside part's rectangle are left as they are.
func (s *Selection) Intersect(part *bitmask.Mask, at geometry.PointInt) error {
	part, at, err := s.clip(part, at)
	if err != nil || part == nil {
		return err
	}
	s.mask.And(part, at.X, at.Y)
	return nil
}

// Subtract removes part's set pixels from the selection.
func (s *Selection) Subtract(part *bitmask.Mask, at geometry.PointInt) error {
	part, at, err := s.clip(part, at)
	if err != nil || part == nil {
		return err
	}
	inv := part.Clone()
	inv.Invert()
	s.mask.And(inv, at.X, at.Y)
	return nil
}

// AddLasso rasterizes a lasso path and adds it to the selection.
func (s *Selection) AddLasso(path []geometry.Point2D) error {
	part, bounds := geometry.RasterizeLasso(path)
	return s.Add(part, geometry.PointInt{X: bounds.X, Y: bounds.Y})
}

// clip crops part to the canvas so lassos dragged past the edge still apply.
// It returns a nil mask when nothing overlaps.
func (s *Selection) clip(part *bitmask.Mask, at geometry.PointInt) (*bitmask.Mask, geometry.PointInt, error) {
	if part == nil {
		return nil, at, fmt.Errorf("%w: nil mask", bitmask.ErrInvalidGeometry)
	}
	if bitmask.CheckCompose(s.mask, part, at.X, at.Y) == nil {
		return part, at, nil
	}

	x0, y0 := max(at.X, 0), max(at.Y, 0)
	x1 := min(at.X+part.Width(), s.mask.Width())
	y1 := min(at.Y+part.Height(), s.mask.Height())
	if x0 >= x1 || y0 >= y1 {
		return nil, at, nil
	}

	cropped := bitmask.New(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if part.Get(x-at.X, y-at.Y) {
				cropped.Set(x-x0, y-y0, true)
			}
		}
	}
	return cropped, geometry.PointInt{X: x0, Y: y0}, nil
}
