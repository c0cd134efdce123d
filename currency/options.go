package currency

import (
	"context"
	"fmt"
)

// SignFunc signs msg with a key held outside the process.
type SignFunc func(ctx context.Context, msg []byte) ([]byte, error)

// PublicKeyFunc returns the public key of an external signer.
type PublicKeyFunc func(ctx context.Context) ([]byte, error)

// MultiSignature is the result of collecting signatures from the members of a
// multi-signature account. Bitmap marks which members signed.
type MultiSignature struct {
	Signatures [][]byte
	Bitmap     []byte
}

// CollectSignaturesFunc gathers member signatures for msg.
type CollectSignaturesFunc func(ctx context.Context, msg []byte) (*MultiSignature, error)

// Credential is the key material handed to an adapter: either a raw private
// key in the chain's native form, or a delegated signer.
type Credential struct {
	PrivateKey []byte
	PublicKey  []byte

	SignFunc          SignFunc
	PublicKeyFunc     PublicKeyFunc
	CollectSignatures CollectSignaturesFunc
}

// Delegated reports whether signing happens outside the process.
func (c Credential) Delegated() bool {
	return c.SignFunc != nil
}

// Options are the construction parameters shared by all adapters.
type Options struct {
	Name            string
	Credential      Credential
	ProviderURL     string
	ContractAddress string
	Precision       int32

	// Extra holds free-form chain-specific settings.
	Extra map[string]any
}

// PrecisionOrDefault returns the configured division precision.
func (o Options) PrecisionOrDefault() int32 {
	if o.Precision > 0 {
		return o.Precision
	}
	return DefaultPrecision
}

// String returns the named Extra setting when it holds a string.
func (o Options) String(key string) (string, bool) {
	v, ok := o.Extra[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// CheckSingleSigner rejects credentials an adapter without multi-signature
// support cannot use.
func (c Credential) CheckSingleSigner(name string) error {
	if c.CollectSignatures != nil {
		return &SigningError{Currency: name, Err: fmt.Errorf("multi-signature collection is not supported")}
	}
	if c.SignFunc == nil && len(c.PrivateKey) == 0 {
		return &SigningError{Currency: name, Err: fmt.Errorf("no private key or signing function provided")}
	}
	if c.SignFunc != nil && len(c.PublicKey) == 0 && c.PublicKeyFunc == nil {
		return &SigningError{Currency: name, Err: fmt.Errorf("a delegated signer needs a public key")}
	}
	return nil
}
