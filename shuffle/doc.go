// Package shuffle implements the seed-keyed block permutation.
//
// The permutation is a pinned construction ("pixzle-shuffle-v1") so that
// fragments produced by one implementation can be restored by another:
//
//  1. The seed text is the base-10 form of a numeric seed, or the UTF-8
//     bytes of a string seed.
//  2. key = SHA3-256("pixzle-shuffle-v1" || 0x00 || seedText). The first
//     eight bytes, big-endian, are the generator state.
//  3. The generator is SplitMix64.
//  4. Draws in [0, bound) use rejection sampling with threshold
//     (2^64 - bound) mod bound.
//  5. Fisher-Yates over [0, n): for i from n-1 down to 1, swap perm[i] with
//     perm[uniform(i+1)].
//
// Shuffle places seq[perm[k]] at position k; Unshuffle reverses it.
//
// The permutation hides block order from a casual viewer. It is not
// encryption: anyone holding the manifest holds the seed.
package shuffle
