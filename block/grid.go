package block

// Grid is the tiling of an image at a given block size.
type Grid struct {
	CountX int
	CountY int
}

// GridFor returns ceil(width/blockSize) x ceil(height/blockSize).
//
// blockSize must be positive; callers validate it. A block size larger than
// the image collapses the grid to 1x1.
func GridFor(width, height, blockSize int) Grid {
	return Grid{
		CountX: ceilDiv(width, blockSize),
		CountY: ceilDiv(height, blockSize),
	}
}

// Count is the number of blocks an image contributes.
func (g Grid) Count() int {
	return g.CountX * g.CountY
}

// ActualSize returns the extent of the cell at position along one axis.
// Only the last cell can be shorter than blockSize.
func ActualSize(position, blockSize, imageSize, blockCount int) int {
	if position == blockCount-1 {
		return imageSize - position*blockSize
	}
	return blockSize
}

// CellSize returns the pixel width and height of cell (x, y).
func (g Grid) CellSize(x, y, blockSize, width, height int) (int, int) {
	return ActualSize(x, blockSize, width, g.CountX), ActualSize(y, blockSize, height, g.CountY)
}

// Count returns the number of blocks for a width x height image.
func Count(width, height, blockSize int) int {
	return GridFor(width, height, blockSize).Count()
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
