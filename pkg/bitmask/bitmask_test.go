package bitmask

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomGrid(rng *rand.Rand, w, h int) [][]bool {
	grid := make([][]bool, h)
	for y := range grid {
		grid[y] = make([]bool, w)
		for x := range grid[y] {
			grid[y][x] = rng.Intn(2) == 1
		}
	}
	return grid
}

// naiveCompose is the per-bit reference for And/Or/Overwrite.
func naiveCompose(dst, src [][]bool, ox, oy int, op composeOp) {
	for y := range src {
		for x, s := range src[y] {
			d := &dst[y+oy][x+ox]
			switch op {
			case composeAnd:
				*d = *d && s
			case composeOr:
				*d = *d || s
			case composeReplace:
				*d = s
			}
		}
	}
}

func assertMatchesGrid(t *testing.T, m *Mask, grid [][]bool) {
	t.Helper()
	for y := range grid {
		for x := range grid[y] {
			if m.Get(x, y) != grid[y][x] {
				t.Fatalf("bit (%d, %d) = %v, want %v", x, y, m.Get(x, y), grid[y][x])
			}
		}
	}
}

func TestNewIsEmpty(t *testing.T) {
	m := New(13, 5)
	assert.Equal(t, 2, m.Stride())
	assert.Len(t, m.Bytes(), 10)
	assert.Equal(t, 0, m.Count())
}

func TestFromBoolsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, size := range [][2]int{{1, 1}, {7, 3}, {8, 4}, {9, 2}, {17, 11}, {64, 5}} {
		grid := randomGrid(rng, size[0], size[1])
		m := FromBools(grid)
		require.Equal(t, size[0], m.Width())
		require.Equal(t, size[1], m.Height())
		assertMatchesGrid(t, m, grid)
	}
}

func TestBitLayoutIsLSBFirst(t *testing.T) {
	m := New(16, 2)
	m.Set(0, 0, true)
	m.Set(9, 1, true)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x02}, m.Bytes())

	m.Set(0, 0, false)
	assert.Equal(t, byte(0), m.Bytes()[0])
}

func TestGetOutOfRangePanics(t *testing.T) {
	m := New(4, 4)
	assert.Panics(t, func() { m.Get(4, 0) })
	assert.Panics(t, func() { m.Get(0, -1) })
	assert.Panics(t, func() { m.Set(-1, 0, true) })
}

func TestFillAndCount(t *testing.T) {
	m := New(11, 3)
	m.Fill(true)
	assert.Equal(t, 33, m.Count())
	// Padding bits stay clear after Fill(true).
	assert.Equal(t, byte(0x07), m.Bytes()[1])

	m.Fill(false)
	assert.Equal(t, 0, m.Count())
}

func TestInvertTwiceRestores(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	grid := randomGrid(rng, 21, 6)
	m := FromBools(grid)
	orig := m.Clone()

	m.Invert()
	for y := range grid {
		for x := range grid[y] {
			require.Equal(t, !grid[y][x], m.Get(x, y))
		}
	}
	// Invert flips padding bits as well, so the raw tail byte differs here.
	assert.NotEqual(t, orig.Bytes()[2]&^0x1F, m.Bytes()[2]&^0x1F)

	m.Invert()
	assert.True(t, m.Equal(orig))
	assert.Equal(t, orig.Bytes(), m.Bytes())
}

func TestComposeByteAligned(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, op := range []composeOp{composeAnd, composeOr, composeReplace} {
		for k := 0; k < 3; k++ {
			for _, size := range [][2]int{{8, 3}, {5, 4}, {13, 2}, {16, 5}} {
				dstW := size[0] + 8*k + 3
				dstGrid := randomGrid(rng, dstW, size[1]+2)
				srcGrid := randomGrid(rng, size[0], size[1])
				m := FromBools(dstGrid)
				m.compose(FromBools(srcGrid), 8*k, 1, op)
				naiveCompose(dstGrid, srcGrid, 8*k, 1, op)
				assertMatchesGrid(t, m, dstGrid)
			}
		}
	}
}

func TestComposeUnaligned(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, op := range []composeOp{composeAnd, composeOr, composeReplace} {
		for offset := 1; offset <= 7; offset++ {
			for _, base := range []int{0, 8, 16} {
				for _, size := range [][2]int{{1, 1}, {7, 3}, {8, 2}, {9, 4}, {15, 3}, {24, 2}} {
					ox := base + offset
					dstGrid := randomGrid(rng, ox+size[0]+rng.Intn(9), size[1]+3)
					srcGrid := randomGrid(rng, size[0], size[1])
					m := FromBools(dstGrid)
					m.compose(FromBools(srcGrid), ox, 2, op)
					naiveCompose(dstGrid, srcGrid, ox, 2, op)
					assertMatchesGrid(t, m, dstGrid)
				}
			}
		}
	}
}

func TestComposeIgnoresSourcePadding(t *testing.T) {
	src := New(3, 1)
	src.Invert() // all 8 bits set, 5 of them padding
	dst := New(16, 1)
	dst.Or(src, 6, 0)
	assert.Equal(t, 3, dst.Count())
	assert.True(t, dst.Get(6, 0))
	assert.True(t, dst.Get(8, 0))
	assert.False(t, dst.Get(9, 0))

	full := New(16, 1)
	full.Fill(true)
	zero := New(3, 1)
	zero.Invert()
	for x := 0; x < 3; x++ {
		zero.Set(x, 0, false)
	}
	require.Equal(t, byte(0xF8), zero.Bytes()[0])
	full.And(zero, 5, 0)
	assert.Equal(t, 13, full.Count())
}

func TestComposeExactFit(t *testing.T) {
	dst := New(10, 2)
	src := New(3, 2)
	src.Fill(true)
	dst.Or(src, 7, 0)
	assert.Equal(t, 6, dst.Count())
	assert.True(t, dst.Get(9, 1))
}

func TestComposeOutOfRangePanics(t *testing.T) {
	dst := New(10, 10)
	src := New(4, 4)
	assert.Panics(t, func() { dst.Or(src, 7, 0) })
	assert.Panics(t, func() { dst.And(src, 0, 7) })
	assert.Panics(t, func() { dst.Overwrite(src, -1, 0) })

	err := CheckCompose(dst, src, 7, 0)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.NoError(t, CheckCompose(dst, src, 6, 6))
}
