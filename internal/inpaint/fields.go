package inpaint

// summedArea is a 2D prefix-sum table over a w x h field. sums has a zero
// guard row and column so sums[(y+1)*(w+1)+x+1] is the sum over [0,x]x[0,y].
type summedArea struct {
	w, h int
	sums []float64
}

func newSummedArea(values []float64, w, h int) *summedArea {
	t := &summedArea{w: w, h: h, sums: make([]float64, (w+1)*(h+1))}
	stride := w + 1
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += values[y*w+x]
			t.sums[(y+1)*stride+x+1] = t.sums[y*stride+x+1] + row
		}
	}
	return t
}

// window sums the field over the square of half side r centred on (x, y),
// clipped to the field.
func (t *summedArea) window(x, y, r int) float64 {
	x0, y0 := max(x-r, 0), max(y-r, 0)
	x1, y1 := min(x+r+1, t.w), min(y+r+1, t.h)
	if x0 >= x1 || y0 >= y1 {
		return 0
	}
	stride := t.w + 1
	return t.sums[y1*stride+x1] - t.sums[y0*stride+x1] - t.sums[y1*stride+x0] + t.sums[y0*stride+x0]
}

// windowedSum returns, for every cell, the clipped sum over its square
// neighbourhood of half side r.
func windowedSum(values []float64, w, h, r int) []float64 {
	t := newSummedArea(values, w, h)
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = t.window(x, y, r)
		}
	}
	return out
}
