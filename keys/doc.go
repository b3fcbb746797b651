// Package keys signs and verifies manifests.
//
// A manifest carries the seed that undoes the shuffle, so whoever holds
// fragments needs to know the manifest they were given is the one the
// fragmenter produced. Signatures cover the canonical CBOR manifest bytes
// and travel as a detached JSON document next to manifest.json.
//
// Keys are 32-byte seeds. The same seed yields an Ed25519 or a Dilithium3
// (post-quantum) key, and KeyStore keeps seeds on the local filesystem with
// per-role subkeys derived from a root seed.
package keys
