package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidKey is returned when the encryption key is not exactly 32 bytes
	ErrInvalidKey = errors.New("crypto: encryption key must be exactly 32 bytes")

	// ErrInvalidEnvelope is returned when a ciphertext envelope is malformed
	ErrInvalidEnvelope = errors.New("crypto: malformed ciphertext envelope")

	// ErrDecryptFailed is returned when authentication fails during decryption.
	// Indicates a forged or corrupted ciphertext, or an encryption key mismatch.
	ErrDecryptFailed = errors.New("crypto: decryption failed")
)

const (
	nonceSize = 12 // 96-bit nonce, AES-GCM standard
	tagSize   = 16
)

// TokenCipher encrypts and decrypts access tokens at rest with AES-256-GCM.
// The envelope format is "nonce:tag:ciphertext" with each segment
// base64-encoded independently, so decryption can recover all three
// deterministically.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher creates a TokenCipher from a raw 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &TokenCipher{aead: aead}, nil
}

// ParseKey decodes an encryption key from its environment representation.
// Accepts either a base64-encoded 32-byte key or a raw 32-character string.
func ParseKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, ErrInvalidKey
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	return nil, ErrInvalidKey
}

// Encrypt encrypts a plaintext token with a fresh random nonce and returns
// the "nonce:tag:ciphertext" envelope.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the 16-byte authentication tag after the ciphertext
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a "nonce:tag:ciphertext" envelope. It fails closed: any
// malformed segment returns ErrInvalidEnvelope, and any authentication
// failure returns ErrDecryptFailed, never partial plaintext.
func (c *TokenCipher) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrInvalidEnvelope
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrInvalidEnvelope
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrInvalidEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidEnvelope
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
