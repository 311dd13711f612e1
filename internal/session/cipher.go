package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// KeyEnv holds the 32-byte (raw or base64) key used to seal cached tokens.
const KeyEnv = "SOCIOFI_SESSION_KEY"

var errInvalidCiphertext = errors.New("invalid token ciphertext")

// Cipher seals tokens with AES-GCM. A nil Cipher passes tokens through.
type Cipher struct {
	aead cipher.AEAD
}

// CipherFromEnv returns nil when no key is configured.
func CipherFromEnv() (*Cipher, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnv))
	if raw == "" {
		return nil, nil
	}
	c, err := NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyEnv, err)
	}
	return c, nil
}

func NewCipher(rawKey string) (*Cipher, error) {
	key, err := decodeKey(rawKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length %d, want 32", len(key))
	}
	return key, nil
}

func (c *Cipher) Seal(plain string) (string, error) {
	if c == nil {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Open(input string) (string, error) {
	if c == nil {
		return input, nil
	}
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", errInvalidCiphertext
	}
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return "", errInvalidCiphertext
	}
	plain, err := c.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", errInvalidCiphertext
	}
	return string(plain), nil
}
