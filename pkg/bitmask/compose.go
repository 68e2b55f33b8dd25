package bitmask

import "fmt"

// composeOp selects how source bits are merged into the destination.
type composeOp int

const (
	composeAnd composeOp = iota
	composeOr
	composeReplace
)

func (op composeOp) String() string {
	switch op {
	case composeAnd:
		return "and"
	case composeOr:
		return "or"
	case composeReplace:
		return "overwrite"
	default:
		return "unknown"
	}
}

// And clears every destination bit inside the rectangle covered by src at
// (offsetX, offsetY) whose source bit is false. Bits outside are untouched.
func (m *Mask) And(src *Mask, offsetX, offsetY int) {
	m.compose(src, offsetX, offsetY, composeAnd)
}

// Or sets every destination bit whose source bit at (offsetX, offsetY) is true.
func (m *Mask) Or(src *Mask, offsetX, offsetY int) {
	m.compose(src, offsetX, offsetY, composeOr)
}

// Overwrite replaces the destination bits covered by src at
// (offsetX, offsetY) with the source bits.
func (m *Mask) Overwrite(src *Mask, offsetX, offsetY int) {
	m.compose(src, offsetX, offsetY, composeReplace)
}

// CheckCompose validates that src placed at (offsetX, offsetY) fits entirely
// inside dst. The composition methods panic on the same conditions.
func CheckCompose(dst, src *Mask, offsetX, offsetY int) error {
	if offsetX < 0 || offsetY < 0 {
		return fmt.Errorf("%w: negative offset (%d, %d)", ErrInvalidGeometry, offsetX, offsetY)
	}
	if src.width+offsetX > dst.width || src.height+offsetY > dst.height {
		return fmt.Errorf("%w: %dx%d at (%d, %d) exceeds %dx%d", ErrInvalidGeometry,
			src.width, src.height, offsetX, offsetY, dst.width, dst.height)
	}
	return nil
}

// compose merges src into m. The x offset is split into a whole-byte block
// shift and a bit shift; with a non-zero bit shift every source byte straddles
// two destination bytes. Source padding bits are masked off so they never
// reach the destination.
func (m *Mask) compose(src *Mask, offsetX, offsetY int, op composeOp) {
	if err := CheckCompose(m, src, offsetX, offsetY); err != nil {
		panic(fmt.Sprintf("bitmask: %s: %v", op, err))
	}
	if src.stride == 0 {
		return
	}
	blocks, shift := offsetX>>logBits, uint(offsetX&bitMask)
	tail := src.tailMask()
	last := src.stride - 1

	if shift == 0 {
		for y := 0; y < src.height; y++ {
			s := src.row(y)
			d := m.row(y + offsetY)[blocks:]
			for x := 0; x < last; x++ {
				merge(&d[x], fullByte, s[x], op)
			}
			merge(&d[last], tail, s[last], op)
		}
		return
	}

	for y := 0; y < src.height; y++ {
		s := src.row(y)
		d := m.row(y + offsetY)[blocks:]
		for x := 0; x <= last; x++ {
			valid := byte(fullByte)
			if x == last {
				valid = tail
			}
			merge(&d[x], valid<<shift, s[x]<<shift, op)
			// The high part is empty when the source ends inside d[x].
			if hi := valid >> (8 - shift); hi != 0 {
				merge(&d[x+1], hi, s[x]>>(8-shift), op)
			}
		}
	}
}

// merge applies op to the bits of *dst selected by mask.
func merge(dst *byte, mask, val byte, op composeOp) {
	switch op {
	case composeAnd:
		*dst &^= mask &^ val
	case composeOr:
		*dst |= val & mask
	case composeReplace:
		*dst = *dst&^mask | val&mask
	}
}
