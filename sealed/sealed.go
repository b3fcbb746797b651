// Package sealed encrypts manifests with age.
//
// A manifest holds the shuffle seed, so anyone with the manifest and the
// fragments can rebuild the images. Sealing it to a passphrase (scrypt) or
// to X25519 recipients lets fragments be shared openly while the manifest
// travels separately. Output is ASCII-armored so sealed manifests survive
// copy and paste.
package sealed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// FileSuffix names sealed manifests, e.g. manifest.json.age.
const FileSuffix = ".age"

const binaryHeader = "age-encryption.org/v1"

// ErrNotSealed is returned when decrypting data that is not age output.
var ErrNotSealed = errors.New("sealed: data is not age encrypted")

// Keypair is an age X25519 keypair.
type Keypair struct {
	// PrivateKey is in AGE-SECRET-KEY-1... form. Never log it.
	PrivateKey string
	// PublicKey is in age1... form.
	PublicKey string
}

// GenerateKeypair creates a new X25519 keypair.
func GenerateKeypair() (Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return Keypair{}, fmt.Errorf("generating age keypair: %w", err)
	}
	return Keypair{PrivateKey: identity.String(), PublicKey: identity.Recipient().String()}, nil
}

// IsSealed reports whether data looks like armored or binary age output.
func IsSealed(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte(armor.Header)) || bytes.HasPrefix(trimmed, []byte(binaryHeader))
}

// Encrypt seals plaintext to one or more age1... recipients.
func Encrypt(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return seal(plaintext, recipients...)
}

// Decrypt opens data sealed by Encrypt with an AGE-SECRET-KEY-1... key.
func Decrypt(data []byte, privateKey string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return open(data, identity)
}

// EncryptPassphrase seals plaintext with a passphrase. workFactor is the
// scrypt log2 cost; 0 keeps age's default.
func EncryptPassphrase(plaintext []byte, passphrase string, workFactor int) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is required")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}
	return seal(plaintext, recipient)
}

// DecryptPassphrase opens data sealed by EncryptPassphrase.
func DecryptPassphrase(data []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	return open(data, identity)
}

func seal(plaintext []byte, recipients ...age.Recipient) ([]byte, error) {
	var buf bytes.Buffer
	armored := armor.NewWriter(&buf)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return buf.Bytes(), nil
}

func open(data []byte, identity age.Identity) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrNotSealed
	}
	var src io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(armor.Header)) {
		src = armor.NewReader(bufio.NewReader(bytes.NewReader(bytes.TrimLeft(data, " \t\r\n"))))
	}
	reader, err := age.Decrypt(src, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}
