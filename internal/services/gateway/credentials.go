package gateway

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Credentials are the decrypted per-processor secrets. They are handed to an
// adapter for the duration of one call and never logged or serialised out.
type Credentials struct {
	SecretKey     string `json:"secret_key,omitempty"`
	PublicKey     string `json:"public_key,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
	MerchantID    string `json:"merchant_id,omitempty"`
	SaltIndex     string `json:"salt_index,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
}

// String redacts every secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{merchant=%q public=%q secrets=[redacted]}", c.MerchantID, c.PublicKey)
}

// GoString keeps %#v from leaking secrets.
func (c Credentials) GoString() string {
	return c.String()
}

var errSealedTooShort = errors.New("sealed credentials too short")

// Sealer encrypts credentials at rest with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// NewSealer accepts a 64 char hex key, or derives one from any other secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty master key", ErrInvalidCredentials)
	}
	if raw, err := hex.DecodeString(secret); err == nil && len(raw) == chacha20poly1305.KeySize {
		return &Sealer{key: raw}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("menupay processor credentials"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive credentials key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts creds; the output is nonce||ciphertext.
func (s *Sealer) Seal(creds Credentials) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(sealed []byte) (Credentials, error) {
	var creds Credentials
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return creds, err
	}
	if len(sealed) < aead.NonceSize() {
		return creds, errSealedTooShort
	}
	nonce, box := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := json.Unmarshal(plain, &creds); err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return creds, nil
}
