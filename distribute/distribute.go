// Package distribute decides how many blocks each fragment carries, where
// each image's blocks sit in the concatenated sequence, and how a fragment
// lays its blocks out on a grid.
package distribute

import (
	"xdao.co/pixzle/block"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/shuffle"
)

// CountsPerImage returns the block count of each image, in order.
func CountsPerImage(images []model.ImageDimensions, blockSize int) []int {
	counts := make([]int, len(images))
	for i, img := range images {
		counts[i] = block.Count(img.Width, img.Height, blockSize)
	}
	return counts
}

// TotalBlocks is the sum of CountsPerImage.
func TotalBlocks(images []model.ImageDimensions, blockSize int) int {
	total := 0
	for _, img := range images {
		total += block.Count(img.Width, img.Height, blockSize)
	}
	return total
}

// CountsForCrossImages spreads totalBlocks over fragmentCount fragments.
//
// Each fragment takes min(ceil(total/n), remaining), so earlier fragments
// are full and trailing fragments may hold fewer blocks or none.
func CountsForCrossImages(totalBlocks, fragmentCount int) ([]int, error) {
	if fragmentCount <= 0 {
		return nil, model.Errorf(model.KindConfig, "distribute blocks", "fragment count must be greater than 0, got %d", fragmentCount)
	}
	counts := make([]int, fragmentCount)
	if totalBlocks <= 0 {
		return counts, nil
	}

	per := (totalBlocks + fragmentCount - 1) / fragmentCount
	remaining := totalBlocks
	for i := range counts {
		if remaining <= 0 {
			break
		}
		n := min(per, remaining)
		counts[i] = n
		remaining -= n
	}
	return counts, nil
}

// Range returns the half-open span [start, end) of entry target in the
// concatenation of counts. A target past the end yields an empty span at
// the total.
func Range(counts []int, target int) (start, end int) {
	for i := 0; i < target && i < len(counts); i++ {
		start += counts[i]
	}
	if target < 0 || target >= len(counts) {
		return start, start
	}
	return start, start + counts[target]
}

// Take returns the first n items (all of them when fewer are available).
func Take[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// ExtractExpected keeps the blocks an image of the given size needs and
// drops the rest (fragment padding).
func ExtractExpected[T any](blocks []T, width, height, blockSize int) []T {
	return Take(blocks, block.Count(width, height, blockSize))
}

// ApplyPerSlice cuts all into consecutive slices of sliceCounts lengths,
// runs fn on each with the same seed, and concatenates the results.
//
// Counts that run past the end of all are clamped.
func ApplyPerSlice[T any](all []T, sliceCounts []int, seed shuffle.Seed, fn func([]T, shuffle.Seed) []T) []T {
	out := make([]T, 0, len(all))
	offset := 0
	for _, n := range sliceCounts {
		end := min(offset+max(n, 0), len(all))
		out = append(out, fn(all[offset:end], seed)...)
		offset = end
	}
	return out
}
