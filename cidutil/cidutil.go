// Package cidutil computes the content identifiers used for fragments and
// manifests: CIDv1 with the raw multicodec over a sha2-256 multihash.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Sum returns the CID of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String returns the CID of data in its default string form, or "" in the
// unreachable case that hashing fails.
func String(data []byte) string {
	c, err := Sum(data)
	if err != nil {
		return ""
	}
	return c.String()
}

// Matches reports whether data hashes to expected. expected may use any
// multihash function go-multihash supports, not only sha2-256.
func Matches(data []byte, expected cid.Cid) (bool, error) {
	got, err := expected.Prefix().Sum(data)
	if err != nil {
		return false, fmt.Errorf("hash with %s prefix: %w", expected, err)
	}
	return got.Equals(expected), nil
}

// MatchesString is Matches for a CID given as text.
func MatchesString(data []byte, expected string) (bool, error) {
	c, err := cid.Decode(expected)
	if err != nil {
		return false, fmt.Errorf("decode cid %q: %w", expected, err)
	}
	return Matches(data, c)
}
