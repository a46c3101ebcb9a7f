// Package crypto seals client-server passwords before they reach the metastore.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextTooShort is returned when a stored value cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// PasswordSealer encrypts connection passwords with AES-256-GCM.
// The empty password is stored as the empty string so "no password"
// stays distinguishable in the connections table.
type PasswordSealer struct {
	aead cipher.AEAD
}

// NewPasswordSealer creates a sealer from a hex-encoded 32-byte key.
func NewPasswordSealer(hexKey string) (*PasswordSealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &PasswordSealer{aead: aead}, nil
}

// Seal returns the hex-encoded nonce||ciphertext of password.
func (s *PasswordSealer) Seal(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(s.aead.Seal(nonce, nonce, []byte(password), nil)), nil
}

// Open reverses Seal.
func (s *PasswordSealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed password: %w", err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", ErrCiphertextTooShort
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed password: %w", err)
	}
	return string(plain), nil
}
