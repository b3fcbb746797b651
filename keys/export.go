package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

func encodePublicKey(alg string, pub []byte) string {
	return alg + ":" + base64.StdEncoding.EncodeToString(pub)
}

// ParsePublicKey splits "<algorithm>:<base64>" and checks the key length.
func ParsePublicKey(s string) (string, []byte, error) {
	alg, b64, ok := strings.Cut(s, ":")
	if !ok {
		return "", nil, fmt.Errorf("public key %q has no algorithm prefix", s)
	}
	pub, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("public key: %w", err)
	}
	want := 0
	switch alg {
	case AlgEd25519:
		want = ed25519.PublicKeySize
	case AlgDilithium3:
		want = mode3.PublicKeySize
	default:
		return "", nil, fmt.Errorf("unsupported public key algorithm: %q", alg)
	}
	if len(pub) != want {
		return "", nil, fmt.Errorf("%s public key must be %d bytes, got %d", alg, want, len(pub))
	}
	return alg, pub, nil
}

// PublicKeyFromSeed returns the "<algorithm>:<base64>" public key for seed.
func PublicKeyFromSeed(algorithm string, seed []byte) (string, error) {
	s, err := NewSigner(algorithm, "", seed)
	if err != nil {
		return "", err
	}
	return s.PublicKey(), nil
}
