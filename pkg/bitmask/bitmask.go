// Package bitmask provides a bit-packed boolean matrix used for region masks.
//
// Rows are packed 8 pixels per byte with a row stride of ceil(width/8) bytes.
// Bit x&7 (least significant first) of byte x>>3 holds column x, which matches
// the usual 1-bit-per-pixel LSB bitmap layout.
package bitmask

import (
	"errors"
	"fmt"
	"math/bits"
)

const (
	bitMask  = 7
	logBits  = 3
	fullByte = 0xFF
)

// ErrInvalidGeometry is returned by CheckCompose when a sub-rectangle does not
// fit inside the destination mask.
var ErrInvalidGeometry = errors.New("invalid mask geometry")

// Mask is a row-major matrix of booleans packed 8 per byte.
type Mask struct {
	width  int
	height int
	stride int
	bits   []byte
}

// New creates a width x height mask with every bit cleared.
func New(width, height int) *Mask {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("bitmask: negative size %dx%d", width, height))
	}
	stride := (width + bitMask) >> logBits
	return &Mask{
		width:  width,
		height: height,
		stride: stride,
		bits:   make([]byte, stride*height),
	}
}

// FromBools packs grid[y][x] into a new mask. All rows must have equal length.
func FromBools(grid [][]bool) *Mask {
	height := len(grid)
	width := 0
	if height > 0 {
		width = len(grid[0])
	}
	m := New(width, height)
	for y, row := range grid {
		if len(row) != width {
			panic(fmt.Sprintf("bitmask: row %d has %d columns, want %d", y, len(row), width))
		}
		line := m.row(y)
		for x, v := range row {
			if v {
				line[x>>logBits] |= 1 << (x & bitMask)
			}
		}
	}
	return m
}

// Width returns the number of columns.
func (m *Mask) Width() int { return m.width }

// Height returns the number of rows.
func (m *Mask) Height() int { return m.height }

// Stride returns the number of bytes per packed row.
func (m *Mask) Stride() int { return m.stride }

// Bytes returns the packed buffer. The slice aliases the mask storage.
func (m *Mask) Bytes() []byte { return m.bits }

// Get reports the bit at (x, y).
func (m *Mask) Get(x, y int) bool {
	m.panicOutside(x, y)
	return m.bits[y*m.stride+x>>logBits]>>(x&bitMask)&1 != 0
}

// Set stores v at (x, y).
func (m *Mask) Set(x, y int, v bool) {
	m.panicOutside(x, y)
	i := y*m.stride + x>>logBits
	if v {
		m.bits[i] |= 1 << (x & bitMask)
	} else {
		m.bits[i] &^= 1 << (x & bitMask)
	}
}

// Fill sets every bit inside the extent to v. Padding bits are cleared.
func (m *Mask) Fill(v bool) {
	if !v || m.stride == 0 {
		clear(m.bits)
		return
	}
	tail := m.tailMask()
	for y := 0; y < m.height; y++ {
		line := m.row(y)
		for i := range line {
			line[i] = fullByte
		}
		line[m.stride-1] = tail
	}
}

// Invert flips every bit of the packed buffer, including the padding bits in
// the last byte of each row. Padding bits are undefined afterwards.
func (m *Mask) Invert() {
	for i := range m.bits {
		m.bits[i] = ^m.bits[i]
	}
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	c := *m
	c.bits = make([]byte, len(m.bits))
	copy(c.bits, m.bits)
	return &c
}

// Count returns the number of set bits inside the extent.
func (m *Mask) Count() int {
	if m.stride == 0 {
		return 0
	}
	tail := m.tailMask()
	n := 0
	for y := 0; y < m.height; y++ {
		line := m.row(y)
		for _, b := range line[:m.stride-1] {
			n += bits.OnesCount8(b)
		}
		n += bits.OnesCount8(line[m.stride-1] & tail)
	}
	return n
}

// Equal reports whether both masks have the same size and the same bits
// inside the extent. Padding bits are ignored.
func (m *Mask) Equal(o *Mask) bool {
	if m.width != o.width || m.height != o.height {
		return false
	}
	if m.stride == 0 {
		return true
	}
	tail := m.tailMask()
	for y := 0; y < m.height; y++ {
		a, b := m.row(y), o.row(y)
		for i := 0; i < m.stride-1; i++ {
			if a[i] != b[i] {
				return false
			}
		}
		if a[m.stride-1]&tail != b[m.stride-1]&tail {
			return false
		}
	}
	return true
}

// tailMask has one bit set for every valid column in the last byte of a row.
func (m *Mask) tailMask() byte {
	valid := m.width & bitMask
	if valid == 0 {
		return fullByte
	}
	return byte(1<<valid) - 1
}

func (m *Mask) row(y int) []byte {
	return m.bits[y*m.stride : (y+1)*m.stride]
}

func (m *Mask) panicOutside(x, y int) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		panic(fmt.Sprintf("bitmask: (%d, %d) exceeds mask bounds %dx%d", x, y, m.width, m.height))
	}
}
