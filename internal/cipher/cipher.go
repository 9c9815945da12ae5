// Package cipher implements the Cipher capability used to encrypt
// sensitiveValue/sensitiveContext before they are persisted (§4.A, §4.E),
// using an AEAD construction from golang.org/x/crypto/chacha20poly1305,
// the same family of primitive the teacher's scan_poller.go assumes is
// available via config.SecretManager-sourced key material.
package cipher

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts and decrypts sensitive strings at rest.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
	// IsEncrypted reports whether a stored value looks like ciphertext
	// produced by this Cipher, so callers can tell legacy plaintext rows
	// apart from encrypted ones without tracking a schema version.
	IsEncrypted(value string) bool
}

const encPrefix = "enc:v1:"

var ErrInvalidKeySize = errors.New("cipher: key must be 32 bytes")

// AEADCipher is the reference Cipher implementation, backed by
// ChaCha20-Poly1305 with a random nonce prepended to each ciphertext.
type AEADCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewAEADCipher constructs an AEADCipher from a 32-byte key, typically
// loaded via the platform config/Vault secret manager.
func NewAEADCipher(key []byte) (*AEADCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}
	return &AEADCipher{aead: aead}, nil
}

func (c *AEADCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cipher: read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AEADCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !c.IsEncrypted(ciphertext) {
		return ciphertext, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, encPrefix))
	if err != nil {
		return "", fmt.Errorf("cipher: decode: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("cipher: ciphertext too short")
	}
	nonce, sealed := raw[:ns], raw[ns:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("cipher: open: %w", err)
	}
	return string(plain), nil
}

func (c *AEADCipher) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}

// NoopCipher stores values untouched. Used in tests and environments where
// encryption at rest is handled by the storage layer instead.
type NoopCipher struct{}

func (NoopCipher) Encrypt(ctx context.Context, plaintext string) (string, error) { return plaintext, nil }
func (NoopCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return ciphertext, nil
}
func (NoopCipher) IsEncrypted(value string) bool { return false }
