// Package wallet turns key files, mnemonics and keystore vaults into
// credentials for the chain adapters.
package wallet

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/mr-tron/base58"

	"github.com/chinmay1088/bundlr-go/chains/arweave"
	"github.com/chinmay1088/bundlr-go/chains/bitcoin"
	"github.com/chinmay1088/bundlr-go/chains/ethereum"
	"github.com/chinmay1088/bundlr-go/chains/solana"
	"github.com/chinmay1088/bundlr-go/crypto"
	"github.com/chinmay1088/bundlr-go/currency"
)

// ErrPasswordRequired is returned when a keystore vault is loaded without a
// password.
var ErrPasswordRequired = errors.New("wallet is encrypted, a password is required")

const evmFamily = "ethereum"

// Family groups currencies that share a key format. Every EVM network maps
// to "ethereum".
func Family(name string) string {
	if _, ok := ethereum.Lookup(name); ok {
		return evmFamily
	}
	return name
}

// ParseKey converts wallet material into the private key form the adapter
// for cur expects. Accepted inputs:
//
//	arweave   JWK JSON
//	solana    solana-keygen JSON array, base58 secret key or mnemonic
//	EVM       hex private key or mnemonic
//	bitcoin   hex private key, WIF or mnemonic
func ParseKey(cur string, data []byte) ([]byte, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, errors.New("empty wallet")
	}

	switch Family(cur) {
	case arweave.Name:
		if _, err := arweave.ParseJWK([]byte(text)); err != nil {
			return nil, err
		}
		return []byte(text), nil

	case solana.Name:
		if IsMnemonic(text) {
			return DeriveEd25519(text, "", SolDerivationPath)
		}
		if strings.HasPrefix(text, "[") {
			var ints []int
			if err := json.Unmarshal([]byte(text), &ints); err != nil {
				return nil, fmt.Errorf("invalid key file: %w", err)
			}
			key := make([]byte, len(ints))
			for i, v := range ints {
				if v < 0 || v > 255 {
					return nil, fmt.Errorf("invalid key file: byte %d out of range", i)
				}
				key[i] = byte(v)
			}
			return checkLen(key, 64)
		}
		key, err := base58.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 key: %w", err)
		}
		return checkLen(key, 64)

	case evmFamily:
		if IsMnemonic(text) {
			return DeriveSecp256k1(text, "", EthDerivationPath)
		}
		return parseHexKey(text)

	case bitcoin.Name:
		if IsMnemonic(text) {
			return DeriveSecp256k1(text, "", BtcDerivationPath)
		}
		if wif, err := btcutil.DecodeWIF(text); err == nil {
			return wif.PrivKey.Serialize(), nil
		}
		return parseHexKey(text)
	}
	return nil, &currency.UnsupportedCurrencyError{Currency: cur}
}

func parseHexKey(text string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if _, err := checkLen(key, btcec.PrivKeyBytesLen); err != nil {
		return nil, err
	}
	return key, nil
}

func checkLen(key []byte, n int) ([]byte, error) {
	if len(key) != n {
		return nil, fmt.Errorf("key is %d bytes, want %d", len(key), n)
	}
	return key, nil
}

// LoadCredential reads the wallet at path for cur. Keystore vaults are
// decrypted with password; plain key files are used as they are.
func LoadCredential(cur, path, password string) (currency.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return currency.Credential{}, fmt.Errorf("failed to read wallet: %w", err)
	}
	return CredentialFromBytes(cur, data, password)
}

// CredentialFromBytes is LoadCredential for wallet contents already in
// memory.
func CredentialFromBytes(cur string, data []byte, password string) (currency.Credential, error) {
	if crypto.IsVault(data) {
		v := new(crypto.Vault)
		if err := json.Unmarshal(data, v); err != nil {
			return currency.Credential{}, fmt.Errorf("failed to parse vault: %w", err)
		}
		if Family(v.Currency) != Family(cur) {
			return currency.Credential{}, fmt.Errorf("wallet holds a %s key, not %s", v.Currency, cur)
		}
		if password == "" {
			return currency.Credential{}, ErrPasswordRequired
		}
		secret, err := v.Decrypt(password)
		if err != nil {
			return currency.Credential{}, err
		}
		defer crypto.ClearBytes(secret)
		data = bytes.Clone(secret)
	}

	key, err := ParseKey(cur, data)
	if err != nil {
		return currency.Credential{}, err
	}
	return currency.Credential{PrivateKey: key}, nil
}
