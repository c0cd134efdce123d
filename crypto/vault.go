// Package crypto encrypts wallet secrets at rest for the CLI keystore.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	ScryptN = 32768 // 2^15
	ScryptR = 8
	ScryptP = 1
	KeyLen  = 32 // AES-256 key length

	VaultVersion = 2
)

// ErrWrongPassword is returned when a vault cannot be opened with the given
// password.
var ErrWrongPassword = errors.New("wrong password or corrupted vault")

// Vault is an encrypted secret for one currency.
type Vault struct {
	Version  int    `json:"version"`
	Currency string `json:"currency"`
	Address  string `json:"address,omitempty"`
	Salt     []byte `json:"salt"`
	Nonce    []byte `json:"nonce"`
	Data     []byte `json:"data"`
}

// NewVault encrypts secret with a key derived from password.
func NewVault(currency string, secret []byte, password string) (*Vault, error) {
	if password == "" {
		return nil, errors.New("password must not be empty")
	}
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer ClearBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	v := &Vault{
		Version:  VaultVersion,
		Currency: currency,
		Salt:     salt,
		Nonce:    nonce,
	}
	v.Data = gcm.Seal(nil, nonce, secret, v.additionalData())
	return v, nil
}

// the currency is authenticated so a vault cannot be relabelled
func (v *Vault) additionalData() []byte {
	return []byte(fmt.Sprintf("bundlr-vault/%d/%s", v.Version, v.Currency))
}

// Decrypt returns the secret. Callers should ClearBytes it when done.
func (v *Vault) Decrypt(password string) ([]byte, error) {
	if v.Version != VaultVersion {
		return nil, fmt.Errorf("unsupported vault version %d", v.Version)
	}
	key, err := deriveKey(password, v.Salt)
	if err != nil {
		return nil, err
	}
	defer ClearBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, v.Nonce, v.Data, v.additionalData())
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

func (v *Vault) ValidatePassword(password string) bool {
	secret, err := v.Decrypt(password)
	ClearBytes(secret)
	return err == nil
}

// Save writes the vault as JSON, readable only by the owner.
func (v *Vault) Save(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize vault: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return nil
}

// LoadVault reads a vault written by Save.
func LoadVault(path string) (*Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}
	var v Vault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	if len(v.Salt) == 0 || len(v.Nonce) == 0 || len(v.Data) == 0 {
		return nil, fmt.Errorf("vault %s is incomplete", path)
	}
	return &v, nil
}

// IsVault reports whether data looks like a serialized Vault.
func IsVault(data []byte) bool {
	var probe struct {
		Version int    `json:"version"`
		Salt    []byte `json:"salt"`
		Data    []byte `json:"data"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Version > 0 && len(probe.Salt) > 0 && len(probe.Data) > 0
}

func deriveKey(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, ScryptN, ScryptR, ScryptP, KeyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return key, nil
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

// ClearBytes zeroes b.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
