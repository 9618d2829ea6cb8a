package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the symmetric key length used by secretbox.
	KeySize = 32

	nonceSize = 24

	// tokenPrefix identifies the ciphertext format version.
	tokenPrefix = "2."
)

var (
	ErrInvalidKeyLength = errors.New("encryption key must be 32 bytes")
	ErrDecryptFailed    = errors.New("failed to decrypt ciphertext")
)

// EncryptString seals plaintext with key and returns a printable ciphertext token:
// the format prefix followed by base64(nonce || box).
func EncryptString(key []byte, plaintext string) (string, error) {
	if len(key) != KeySize {
		return "", ErrInvalidKeyLength
	}

	var k [KeySize]byte
	copy(k[:], key)
	defer Erase(k[:])

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &k)
	return tokenPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString opens a token produced by EncryptString.
func DecryptString(key []byte, token string) (string, error) {
	if len(key) != KeySize {
		return "", ErrInvalidKeyLength
	}

	encoded, found := strings.CutPrefix(token, tokenPrefix)
	if !found {
		return "", ErrDecryptFailed
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptFailed
	}

	var k [KeySize]byte
	copy(k[:], key)
	defer Erase(k[:])

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &k)
	if !ok {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// Erase zeroes b in place.
func Erase(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
