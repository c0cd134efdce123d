package arweave

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// JWK is an Arweave wallet key file.
type JWK struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	Dp  string `json:"dp,omitempty"`
	Dq  string `json:"dq,omitempty"`
	Qi  string `json:"qi,omitempty"`
}

// ParseJWK decodes an Arweave key file into an RSA private key.
func ParseJWK(data []byte) (*rsa.PrivateKey, error) {
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", jwk.Kty)
	}

	fields := map[string]string{"n": jwk.N, "e": jwk.E, "d": jwk.D, "p": jwk.P, "q": jwk.Q}
	ints := make(map[string]*big.Int, len(fields))
	for name, v := range fields {
		b, err := base64.RawURLEncoding.DecodeString(v)
		if err != nil || len(b) == 0 {
			return nil, fmt.Errorf("invalid key field %q", name)
		}
		ints[name] = new(big.Int).SetBytes(b)
	}
	if !ints["e"].IsInt64() {
		return nil, fmt.Errorf("invalid key field %q", "e")
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: ints["n"], E: int(ints["e"].Int64())},
		D:         ints["d"],
		Primes:    []*big.Int{ints["p"], ints["q"]},
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	key.Precompute()
	return key, nil
}

// MarshalJWK encodes key as an Arweave key file.
func MarshalJWK(key *rsa.PrivateKey) ([]byte, error) {
	key.Precompute()
	if len(key.Primes) != 2 {
		return nil, fmt.Errorf("multi-prime keys are not supported")
	}
	enc := func(i *big.Int) string { return base64.RawURLEncoding.EncodeToString(i.Bytes()) }
	return json.Marshal(JWK{
		Kty: "RSA",
		N:   enc(key.N),
		E:   enc(big.NewInt(int64(key.E))),
		D:   enc(key.D),
		P:   enc(key.Primes[0]),
		Q:   enc(key.Primes[1]),
		Dp:  enc(key.Precomputed.Dp),
		Dq:  enc(key.Precomputed.Dq),
		Qi:  enc(key.Precomputed.Qinv),
	})
}

func publicKeyFromOwner(owner []byte) *rsa.PublicKey {
	return &rsa.PublicKey{N: new(big.Int).SetBytes(owner), E: 65537}
}
