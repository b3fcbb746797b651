package shuffle

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Algorithm names the permutation construction. It is part of the key
// derivation input, so changing it changes every permutation.
const Algorithm = "pixzle-shuffle-v1"

const (
	splitmixGamma = 0x9E3779B97F4A7C15
	splitmixMul1  = 0xBF58476D1CE4E5B9
	splitmixMul2  = 0x94D049BB133111EB
)

// deriveKey returns the initial generator state for seed.
func deriveKey(seed Seed) uint64 {
	h := sha3.New256()
	h.Write([]byte(Algorithm))
	h.Write([]byte{0})
	h.Write([]byte(seed.Text()))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// splitmix64 is the generator behind every permutation.
type splitmix64 struct {
	state uint64
}

func (r *splitmix64) next() uint64 {
	r.state += splitmixGamma
	z := r.state
	z = (z ^ (z >> 30)) * splitmixMul1
	z = (z ^ (z >> 27)) * splitmixMul2
	return z ^ (z >> 31)
}

// uniform returns a value in [0, bound) without modulo bias. bound > 0.
func (r *splitmix64) uniform(bound uint64) uint64 {
	threshold := -bound % bound
	for {
		if v := r.next(); v >= threshold {
			return v % bound
		}
	}
}

// Permutation returns the permutation of [0, n) keyed by seed.
//
// The same (n, seed) pair yields the same slice on every platform.
func Permutation(n int, seed Seed) []int {
	if n <= 0 {
		return []int{}
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r := splitmix64{state: deriveKey(seed)}
	for i := n - 1; i > 0; i-- {
		j := int(r.uniform(uint64(i + 1)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Shuffle returns a new slice with out[k] = seq[perm[k]]. seq is not modified.
func Shuffle[T any](seq []T, seed Seed) []T {
	perm := Permutation(len(seq), seed)
	out := make([]T, len(seq))
	for k, p := range perm {
		out[k] = seq[p]
	}
	return out
}

// Unshuffle inverts Shuffle for the same seed and length.
func Unshuffle[T any](seq []T, seed Seed) []T {
	perm := Permutation(len(seq), seed)
	out := make([]T, len(seq))
	for k, p := range perm {
		out[p] = seq[k]
	}
	return out
}
