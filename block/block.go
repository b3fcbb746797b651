// Package block moves pixel data between full RGBA rasters and ordered
// sequences of square blocks.
//
// The canonical block order is row-major over the grid: y outer, x inner.
// Split and Assemble share that walk, and fragments written by one
// implementation are read back by another, so the order is part of the data
// format.
//
// Both directions are fail-soft. Source bytes outside the buffer read as
// zero, and writes past the end of the target are dropped. Assembling from
// fewer blocks than the grid holds leaves the rest of the raster zeroed.
package block

import "xdao.co/pixzle/model"

// Channels is the byte count of one pixel.
const Channels = model.Channels

// UnknownHeight tells Extract that the image height is not known. In that
// case a full blockSize rows are read and missing rows come back as zeros.
const UnknownHeight = -1

// Extract copies the block whose top-left pixel is (startX, startY).
//
// The block is min(blockSize, imageWidth-startX) pixels wide and
// min(blockSize, imageHeight-startY) rows tall (blockSize rows when
// imageHeight is UnknownHeight).
func Extract(buf []byte, imageWidth, imageHeight, startX, startY, blockSize int) []byte {
	w := max(0, min(blockSize, imageWidth-startX))
	h := blockSize
	if imageHeight != UnknownHeight {
		h = max(0, min(blockSize, imageHeight-startY))
	}

	out := make([]byte, w*h*Channels)
	o := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := ((startY+y)*imageWidth + startX + x) * Channels
			for c := 0; c < Channels; c++ {
				if i := src + c; i >= 0 && i < len(buf) {
					out[o] = buf[i]
				}
				o++
			}
		}
	}
	return out
}

// Place writes a blockWidth x blockHeight block into target at (destX, destY).
//
// Pixels whose last byte would land past len(target) are skipped. Bytes the
// block does not have are written as zero.
func Place(target, blk []byte, targetWidth, destX, destY, blockWidth, blockHeight int) {
	for y := 0; y < blockHeight; y++ {
		for x := 0; x < blockWidth; x++ {
			src := (y*blockWidth + x) * Channels
			dst := ((destY+y)*targetWidth + destX + x) * Channels
			if dst < 0 || dst+Channels > len(target) {
				continue
			}
			for c := 0; c < Channels; c++ {
				var v byte
				if i := src + c; i < len(blk) {
					v = blk[i]
				}
				target[dst+c] = v
			}
		}
	}
}

// Split cuts a width x height raster into blocks in row-major grid order.
func Split(buf []byte, width, height, blockSize int) [][]byte {
	g := GridFor(width, height, blockSize)
	blocks := make([][]byte, 0, g.Count())
	for by := 0; by < g.CountY; by++ {
		for bx := 0; bx < g.CountX; bx++ {
			blocks = append(blocks, Extract(buf, width, height, bx*blockSize, by*blockSize, blockSize))
		}
	}
	return blocks
}

// Assemble rebuilds a width x height raster from blocks in row-major grid
// order. Placement stops when blocks run out.
func Assemble(blocks [][]byte, width, height, blockSize int) []byte {
	out := make([]byte, width*height*Channels)
	g := GridFor(width, height, blockSize)

	i := 0
	for by := 0; by < g.CountY && i < len(blocks); by++ {
		for bx := 0; bx < g.CountX && i < len(blocks); bx++ {
			w, h := g.CellSize(bx, by, blockSize, width, height)
			Place(out, blocks[i], width, bx*blockSize, by*blockSize, w, h)
			i++
		}
	}
	return out
}

// SplitImage is Split over a RawImage.
func SplitImage(img model.RawImage, blockSize int) [][]byte {
	return Split(img.Pix, img.Width, img.Height, blockSize)
}

// AssembleImage is Assemble returning a RawImage.
func AssembleImage(blocks [][]byte, width, height, blockSize int) model.RawImage {
	return model.RawImage{Pix: Assemble(blocks, width, height, blockSize), Width: width, Height: height}
}
