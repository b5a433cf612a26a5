package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomString generates a random hex string for salts
func CryptoRandomString(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// CryptoRandomToken generates a URL-safe random token of the given byte length.
// Used for OAuth state values embedded in redirect URLs.
func CryptoRandomToken(length int64) (string, error) {
	bytes, err := CryptoRandomBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// HashToken returns PBKDF2 hash of token with salt
// Parameters match Gitea's implementation for security consistency
func HashToken(token, salt string) string {
	hash := pbkdf2.Key([]byte(token), []byte(salt), 10000, 50, sha256.New)
	return hex.EncodeToString(hash)
}

// VerifyTokenHash compares a token against a stored PBKDF2 hash in constant time.
func VerifyTokenHash(token, salt, hash string) bool {
	computed := HashToken(token, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
