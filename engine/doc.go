// Package engine fragments batches of images and restores them.
//
// Fragment loads every source, cuts it into blocks, permutes the blocks with
// the configured seed (within each image, or across the whole batch) and
// packs them into one fragment image per source. Restore reverses the
// process from the fragments and the manifest alone.
//
// Per-image work runs on a bounded worker pool. Workers write only to their
// own result slot, and the first failure cancels the rest: a call either
// returns every output or an error.
package engine
