package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Signature algorithms.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// Digest algorithms applied to the message before signing.
const (
	HashSHA256  = "sha256"
	HashSHA512  = "sha512"
	HashSHA3256 = "sha3-256"
)

var ErrBadSignature = errors.New("keys: signature does not verify")

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Signer holds a private key and the digest it signs over. Build one with
// NewSigner.
type Signer struct {
	Algorithm string
	Hash      string

	ed  ed25519.PrivateKey
	dil *mode3.PrivateKey
	pub string
}

// NewSigner derives the algorithm's key from a 32-byte seed. hashAlg
// defaults to sha256 for ed25519 and sha3-256 for dilithium3.
func NewSigner(algorithm, hashAlg string, seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	s := &Signer{Algorithm: algorithm, Hash: hashAlg}
	switch algorithm {
	case AlgEd25519:
		if s.Hash == "" {
			s.Hash = HashSHA256
		}
		s.ed = ed25519.NewKeyFromSeed(seed)
		s.pub = encodePublicKey(AlgEd25519, s.ed.Public().(ed25519.PublicKey))
	case AlgDilithium3:
		if s.Hash == "" {
			s.Hash = HashSHA3256
		}
		var sd [32]byte
		copy(sd[:], seed)
		pk, sk := mode3.NewKeyFromSeed(&sd)
		s.dil = sk
		s.pub = encodePublicKey(AlgDilithium3, pk.Bytes())
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %q", algorithm)
	}
	if _, err := digestFor(s.Hash, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// PublicKey is the signer's public key as "<algorithm>:<base64>".
func (s *Signer) PublicKey() string { return s.pub }

// Sign signs hash(message).
func Sign(message []byte, s *Signer) (Signature, error) {
	if s == nil || (s.ed == nil && s.dil == nil) {
		return Signature{}, errors.New("missing private key")
	}
	digest, err := digestFor(s.Hash, message)
	if err != nil {
		return Signature{}, err
	}
	var raw []byte
	switch s.Algorithm {
	case AlgEd25519:
		raw = ed25519.Sign(s.ed, digest)
	case AlgDilithium3:
		raw = make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.dil, digest, raw)
	default:
		return Signature{}, fmt.Errorf("unsupported signature algorithm: %q", s.Algorithm)
	}
	return Signature{
		Algorithm: s.Algorithm,
		Hash:      s.Hash,
		PublicKey: s.pub,
		Value:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Verify checks sig over message against the public key sig carries.
// Callers decide separately whether that key is trusted.
func Verify(message []byte, sig Signature) error {
	alg, pub, err := ParsePublicKey(sig.PublicKey)
	if err != nil {
		return err
	}
	if alg != sig.Algorithm {
		return fmt.Errorf("public key is %s, signature claims %s", alg, sig.Algorithm)
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	digest, err := digestFor(sig.Hash, message)
	if err != nil {
		return err
	}
	var ok bool
	switch alg {
	case AlgEd25519:
		ok = ed25519.Verify(ed25519.PublicKey(pub), digest, raw)
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("dilithium3 public key: %w", err)
		}
		ok = mode3.Verify(&pk, digest, raw)
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}

// GenerateSeed reads a fresh 32-byte key seed from rand.
func GenerateSeed(rand io.Reader) ([]byte, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, err
	}
	return seed, nil
}
