package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRoundTrip(t *testing.T) {
	secret := []byte("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")

	v, err := NewVault("ethereum", secret, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(v.Data), string(secret))

	got, err := v.Decrypt("hunter2")
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	_, err = v.Decrypt("wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.False(t, v.ValidatePassword("wrong"))
	assert.True(t, v.ValidatePassword("hunter2"))
}

func TestVaultRejectsRelabelling(t *testing.T) {
	v, err := NewVault("solana", []byte("secret"), "pw")
	require.NoError(t, err)

	v.Currency = "arweave"
	_, err = v.Decrypt("pw")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestVaultSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "arweave.json")

	v, err := NewVault("arweave", []byte(`{"kty":"RSA"}`), "pw")
	require.NoError(t, err)
	v.Address = "addr"
	require.NoError(t, v.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsVault(raw))
	assert.False(t, IsVault([]byte(`{"kty":"RSA"}`)))

	loaded, err := LoadVault(path)
	require.NoError(t, err)
	assert.Equal(t, "addr", loaded.Address)
	secret, err := loaded.Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, `{"kty":"RSA"}`, string(secret))
}

func TestNewVaultNeedsPassword(t *testing.T) {
	_, err := NewVault("solana", []byte("x"), "")
	assert.Error(t, err)
}
