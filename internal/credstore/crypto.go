package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/user"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// appSalt pins derived keys to this application and key-schema revision.
	appSalt = "cdp-runbooker-v1"

	kdfIterations = 100000
	kdfSaltLength = 16
	keyLength     = 32
)

// KeyMaterial is the identity tuple a DerivedKey is bound to.
type KeyMaterial struct {
	Machine string
	User    string
	Home    string
}

// LocalKeyMaterial collects the tuple for the current process. Lookups that
// fail fall back to fixed placeholders so the key stays deterministic.
func LocalKeyMaterial() KeyMaterial {
	m := KeyMaterial{
		Machine: "unknown-machine",
		User:    "unknown-user",
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		m.Machine = host
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		m.User = u.Username
	} else if name := os.Getenv("USER"); name != "" {
		m.User = name
	}
	if home, err := os.UserHomeDir(); err == nil {
		m.Home = home
	}
	return m
}

func (m KeyMaterial) identifier() string {
	return fmt.Sprintf("%s:%s:%s:%s", m.Machine, m.User, m.Home, appSalt)
}

// DeriveKey computes the 256-bit record key for m.
// The PBKDF2 salt is itself derived from the identifier, so the same tuple
// always yields the same key and nothing needs to be persisted.
func DeriveKey(m KeyMaterial) []byte {
	id := []byte(m.identifier())
	sum := sha256.Sum256(id)
	return pbkdf2.Key(id, sum[:kdfSaltLength], kdfIterations, keyLength, sha256.New)
}

// Encrypt seals token with AES-256-GCM. The output is nonce||ciphertext,
// URL-safe base64 encoded so it can be embedded in JSON.
func Encrypt(token string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(token), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It reports false for any failure: bad framing,
// truncation, tampering or a key derived from a different tuple.
func Decrypt(ciphertext string, key []byte) (string, bool) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", false
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", false
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize+gcm.Overhead() {
		return "", false
	}

	plaintext, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", false
	}
	return string(plaintext), true
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
