package integration

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealedPrefix marks an access token stored encrypted. Rows without it were
// written before a key was configured and are returned as stored.
const sealedPrefix = "v1:"

// TokenCipher encrypts access tokens at rest with XChaCha20-Poly1305. The
// owning user ID is bound as additional data, so a sealed token copied to
// another user's row does not open.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives the encryption key from secret with HKDF-SHA256.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if len(secret) < 16 {
		return nil, errors.New("token encryption key must be at least 16 characters")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("linkedin-access-token"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive token key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Seal encrypts token for userID.
func (c *TokenCipher) Seal(userID uuid.UUID, token string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(token)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(token), userID[:])
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal for the same user.
func (c *TokenCipher) Open(userID uuid.UUID, stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed sealed token: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", errors.New("malformed sealed token: too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], userID[:])
	if err != nil {
		return "", fmt.Errorf("failed to open sealed token: %w", err)
	}
	return string(plain), nil
}
