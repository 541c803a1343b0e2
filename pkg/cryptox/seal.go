package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrOpen is returned when a sealed value fails authentication or is
// malformed.
var ErrOpen = errors.New("cryptox: cannot open sealed value")

// Sealer encrypts short strings (cookie values) with XChaCha20-Poly1305 under
// a key derived from a secret.
type Sealer struct {
	key []byte
}

// NewSealer derives a 256-bit key from secret using HKDF-SHA256 with info as
// the context label. An empty secret yields a random key, so sealed values do
// not survive a restart.
func NewSealer(secret []byte, info string) (*Sealer, error) {
	if len(secret) == 0 {
		secret = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral secret: %w", err)
		}
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext, binding it to aad (typically the cookie name), and
// returns nonce||ciphertext as unpadded base64url.
func (s *Sealer) Seal(plaintext, aad string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any tampering, a wrong aad or a different key yields
// ErrOpen.
func (s *Sealer) Open(sealed, aad string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrOpen
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrOpen
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return "", ErrOpen
	}

	return string(plain), nil
}
