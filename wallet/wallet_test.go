package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/bundlr-go/currency"
)

const hardhatMnemonic = "test test test test test test test test test test test junk"

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDeriveSecp256k1Vector(t *testing.T) {
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")

	key, err := deriveSecp256k1FromSeed(seed, "m/0'")
	require.NoError(t, err)
	assert.Equal(t, "edb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea", hex.EncodeToString(key))
}

func TestDeriveEd25519Vector(t *testing.T) {
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")

	key, err := deriveEd25519FromSeed(seed, "m/0'")
	require.NoError(t, err)
	assert.Equal(t, "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3", hex.EncodeToString(key.Seed()))

	_, err = deriveEd25519FromSeed(seed, "m/0")
	assert.Error(t, err)
}

func TestMnemonicToEthereumAddress(t *testing.T) {
	key, err := ParseKey("matic", []byte(hardhatMnemonic))
	require.NoError(t, err)

	priv, err := ethcrypto.ToECDSA(key)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", ethcrypto.PubkeyToAddress(priv.PublicKey).Hex())
}

func TestParseKeyFormats(t *testing.T) {
	secp := make([]byte, 32)
	secp[31] = 1
	hexKey := "0x" + hex.EncodeToString(secp)

	key, err := ParseKey("ethereum", []byte(hexKey+"\n"))
	require.NoError(t, err)
	assert.Equal(t, secp, key)

	priv, _ := btcec.PrivKeyFromBytes(secp)
	wif, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	require.NoError(t, err)
	key, err = ParseKey("bitcoin", []byte(wif.String()))
	require.NoError(t, err)
	assert.Equal(t, secp, key)

	sol := ed25519.NewKeyFromSeed(make([]byte, 32))
	ints := make([]int, len(sol))
	for i, b := range sol {
		ints[i] = int(b)
	}
	arr, _ := json.Marshal(ints)
	key, err = ParseKey("solana", arr)
	require.NoError(t, err)
	assert.Equal(t, []byte(sol), key)

	key, err = ParseKey("solana", []byte(base58.Encode(sol)))
	require.NoError(t, err)
	assert.Equal(t, []byte(sol), key)

	_, err = ParseKey("ethereum", []byte("0x1234"))
	assert.Error(t, err)

	_, err = ParseKey("dogecoin", []byte(hexKey))
	var uce *currency.UnsupportedCurrencyError
	assert.ErrorAs(t, err, &uce)
}

func TestStoreAndLoadCredential(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	secret := []byte(hardhatMnemonic)

	path, err := s.Import("ethereum", secret, "pw", "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	require.NoError(t, err)
	assert.True(t, s.Has("ethereum"))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"ethereum"}, names)

	cred, err := LoadCredential("arbitrum", path, "pw")
	require.NoError(t, err)
	assert.Len(t, cred.PrivateKey, 32)

	_, err = LoadCredential("ethereum", path, "")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = LoadCredential("solana", path, "pw")
	assert.Error(t, err)

	_, err = s.Import("ethereum", []byte("not a key"), "pw", "")
	assert.Error(t, err)
}

func TestLoadCredentialPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(path, []byte(hardhatMnemonic), 0o600))

	cred, err := LoadCredential("bitcoin", path, "")
	require.NoError(t, err)
	assert.Len(t, cred.PrivateKey, 32)
	assert.False(t, cred.Delegated())
}
