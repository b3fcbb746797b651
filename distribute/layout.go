package distribute

// Layout is the geometry of a fragment image carrying a number of blocks.
type Layout struct {
	BlocksPerRow int
	Rows         int
	Width        int
	Height       int
}

// Cells is the number of grid cells. Cells beyond the block count are
// padding.
func (l Layout) Cells() int { return l.BlocksPerRow * l.Rows }

// LayoutFor returns the square-ish grid for blockCount blocks:
// ceil(sqrt(n)) blocks per row and ceil(n / blocksPerRow) rows.
//
// A fragment with no blocks still gets one padding cell so that it encodes
// to a valid image.
func LayoutFor(blockCount, blockSize int) Layout {
	perRow := ceilSqrt(blockCount)
	if perRow < 1 {
		perRow = 1
	}
	rows := (blockCount + perRow - 1) / perRow
	if rows < 1 {
		rows = 1
	}
	return Layout{
		BlocksPerRow: perRow,
		Rows:         rows,
		Width:        perRow * blockSize,
		Height:       rows * blockSize,
	}
}

// ceilSqrt returns the smallest r with r*r >= n, for n >= 0.
func ceilSqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := isqrt(n)
	if r*r < n {
		r++
	}
	return r
}

// isqrt is floor(sqrt(n)) by Newton's method on integers.
func isqrt(n int) int {
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
