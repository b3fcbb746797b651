package keys

import (
	"encoding/json"
	"fmt"
	"os"

	"xdao.co/pixzle/manifest"
)

// SignatureSuffix is appended to a manifest path to name its detached
// signature.
const SignatureSuffix = ".sig"

// Signature is a detached signature document.
type Signature struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
	PublicKey string `json:"publicKey"`
	// ManifestCID binds the signature to one manifest when signing
	// manifests; it is informative, the signature covers the bytes.
	ManifestCID string `json:"manifestCID,omitempty"`
	Value       string `json:"signature"`
}

// SignManifest signs the canonical bytes of m.
func SignManifest(m *manifest.Manifest, s *Signer) (Signature, error) {
	b, err := manifest.CanonicalBytes(m)
	if err != nil {
		return Signature{}, err
	}
	id, err := manifest.CID(m)
	if err != nil {
		return Signature{}, err
	}
	sig, err := Sign(b, s)
	if err != nil {
		return Signature{}, err
	}
	sig.ManifestCID = id.String()
	return sig, nil
}

// VerifyManifest checks sig against the canonical bytes of m. When
// trustedKey is non-empty the signature must also come from that key.
func VerifyManifest(m *manifest.Manifest, sig Signature, trustedKey string) error {
	if trustedKey != "" && sig.PublicKey != trustedKey {
		return fmt.Errorf("signed by %s, expected %s", sig.PublicKey, trustedKey)
	}
	if sig.ManifestCID != "" {
		id, err := manifest.CID(m)
		if err != nil {
			return err
		}
		if id.String() != sig.ManifestCID {
			return fmt.Errorf("signature is for manifest %s, not %s", sig.ManifestCID, id)
		}
	}
	b, err := manifest.CanonicalBytes(m)
	if err != nil {
		return err
	}
	return Verify(b, sig)
}

// MarshalSignature renders sig as indented JSON with a trailing newline.
func MarshalSignature(sig Signature) ([]byte, error) {
	b, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ParseSignature decodes a detached signature document.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature
	if err := json.Unmarshal(b, &sig); err != nil {
		return Signature{}, fmt.Errorf("parse signature: %w", err)
	}
	if sig.Algorithm == "" || sig.PublicKey == "" || sig.Value == "" {
		return Signature{}, fmt.Errorf("parse signature: algorithm, publicKey and signature are required")
	}
	return sig, nil
}

// WriteSignatureFile writes sig to path.
func WriteSignatureFile(path string, sig Signature) error {
	b, err := MarshalSignature(sig)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadSignatureFile reads a detached signature from path.
func ReadSignatureFile(path string) (Signature, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Signature{}, err
	}
	return ParseSignature(b)
}
