// Package currency defines the contract every supported chain adapter satisfies
// so that funding, withdrawal and upload code can stay chain-agnostic.
package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal places kept when dividing atomic
// amounts; NEAR-style 24-decimal currencies need well over 30.
const DefaultPrecision int32 = 50

// Signature types understood by the bundler for signed data items.
const (
	SignatureNone     = 0
	SignatureArweave  = 1
	SignatureED25519  = 2
	SignatureEthereum = 3
	SignatureSolana   = 4
)

// Base pairs the atomic unit name with the number of atomic units in one
// whole coin, e.g. {"winston", 1e12}.
type Base struct {
	Unit   string
	Atomic decimal.Decimal
}

// Config is the immutable description of one adapter instance.
type Config struct {
	Name          string
	Ticker        string
	Base          Base
	MinConfirm    uint64
	NeedsFee      bool
	IsSlow        bool
	SignatureType int
	ProviderURL   string
	Precision     int32
}

// Tx is the normalized view of a chain transaction. Amount is in atomic units.
type Tx struct {
	From      string
	To        string
	Amount    decimal.Decimal
	Pending   bool
	Confirmed bool
}

// Transfer is a signed native transfer ready to broadcast. ID is empty when
// the chain only assigns one on broadcast.
type Transfer struct {
	ID string
	Tx []byte
}

// Currency is implemented by every chain adapter.
type Currency interface {
	Config() Config

	// Address is the credential's address on this chain. Adapters that
	// implement Initializer may return "" until Ready has completed.
	Address() string

	// GetTx fetches a transaction; a *NotFoundError is returned when the
	// chain has no record of it.
	GetTx(ctx context.Context, id string) (*Tx, error)

	OwnerToAddress(owner []byte) (string, error)
	Sign(ctx context.Context, data []byte) ([]byte, error)
	Verify(pub, data, signature []byte) bool
	GetCurrentHeight(ctx context.Context) (uint64, error)

	// GetFee quotes the network fee for sending amount to to, rounded up to
	// a whole atomic unit.
	GetFee(ctx context.Context, amount decimal.Decimal, to string) (decimal.Decimal, error)

	// SendTx broadcasts a transfer built by CreateTx. It never retries.
	SendTx(ctx context.Context, tx []byte) (string, error)

	CreateTx(ctx context.Context, amount decimal.Decimal, to string, fee *decimal.Decimal) (*Transfer, error)
	GetPublicKey(ctx context.Context) (string, error)

	// Owner returns the raw public key bytes carried in signed data items.
	Owner(ctx context.Context) ([]byte, error)
}

// Initializer is implemented by adapters that need network or signer access
// before their address is known.
type Initializer interface {
	Ready(ctx context.Context) error
}
