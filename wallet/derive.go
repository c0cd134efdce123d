package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/tyler-smith/go-bip39"
)

const (
	// Derivation paths per chain
	EthDerivationPath = "m/44'/60'/0'/0/0"
	BtcDerivationPath = "m/84'/0'/0'/0/0"
	SolDerivationPath = "m/44'/501'/0'/0'"
)

// NewMnemonic generates a 24 word BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// IsMnemonic reports whether s is a valid BIP-39 phrase.
func IsMnemonic(s string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(s))
}

func normalizeMnemonic(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func seedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(normalizeMnemonic(mnemonic), passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return seed, nil
}

// DeriveSecp256k1 derives a raw 32-byte secp256k1 key at path (BIP-32).
func DeriveSecp256k1(mnemonic, passphrase, path string) ([]byte, error) {
	seed, err := seedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return deriveSecp256k1FromSeed(seed, path)
}

func deriveSecp256k1FromSeed(seed []byte, path string) ([]byte, error) {
	indexes, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
	}
	// the network only affects serialization of extended keys
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	for _, i := range indexes {
		if key, err = key.Derive(i); err != nil {
			return nil, fmt.Errorf("failed to derive child: %w", err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return priv.Serialize(), nil
}

// DeriveEd25519 derives an ed25519 key at path using SLIP-0010. Every path
// component must be hardened.
func DeriveEd25519(mnemonic, passphrase, path string) (ed25519.PrivateKey, error) {
	seed, err := seedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return deriveEd25519FromSeed(seed, path)
}

func deriveEd25519FromSeed(seed []byte, path string) (ed25519.PrivateKey, error) {
	indexes, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
	}

	sum := hmacSHA512([]byte("ed25519 seed"), seed)
	key, chainCode := sum[:32], sum[32:]
	for _, i := range indexes {
		if i < hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("ed25519 derivation requires hardened indexes, got %d", i)
		}
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, i)
		sum = hmacSHA512(chainCode, data)
		key, chainCode = sum[:32], sum[32:]
	}
	return ed25519.NewKeyFromSeed(key), nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}
