// Package solana is the Solana chain adapter.
package solana

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/logger"
)

const (
	Name              = "solana"
	DefaultRPC        = "https://api.mainnet-beta.solana.com"
	DefaultMinConfirm = 10
)

// RPC is the subset of rpc.Client the adapter calls.
type RPC interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetFeeForMessage(ctx context.Context, message string, commitment rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

var _ RPC = (*rpc.Client)(nil)

// Adapter implements currency.Currency for Solana.
type Adapter struct {
	cfg  currency.Config
	cred currency.Credential
	key  solana.PrivateKey
	log  logger.Logger

	pub    atomic.Pointer[solana.PublicKey]
	client atomic.Pointer[RPC]
}

var (
	_ currency.Currency    = (*Adapter)(nil)
	_ currency.Initializer = (*Adapter)(nil)
)

// New creates a Solana adapter. Credential.PrivateKey is a 64-byte ed25519
// key as produced by solana-keygen.
func New(opts currency.Options, log logger.Logger) (*Adapter, error) {
	if err := opts.Credential.CheckSingleSigner(Name); err != nil {
		return nil, err
	}
	url := opts.ProviderURL
	if url == "" {
		url = DefaultRPC
	}

	a := &Adapter{
		cred: opts.Credential,
		log:  logger.OrNoop(log),
		cfg: currency.Config{
			Name:          Name,
			Ticker:        "SOL",
			Base:          currency.NewBase("lamports", 9),
			MinConfirm:    DefaultMinConfirm,
			NeedsFee:      false,
			IsSlow:        false,
			SignatureType: currency.SignatureED25519,
			ProviderURL:   url,
			Precision:     opts.PrecisionOrDefault(),
		},
	}

	switch {
	case !opts.Credential.Delegated():
		key := solana.PrivateKey(opts.Credential.PrivateKey)
		if err := key.Validate(); err != nil {
			return nil, &currency.SigningError{Currency: Name, Err: err}
		}
		a.key = key
		pub := key.PublicKey()
		a.pub.Store(&pub)
	case len(opts.Credential.PublicKey) > 0:
		if err := a.setPublicKey(opts.Credential.PublicKey); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewWithRPC creates an adapter bound to an existing RPC client.
func NewWithRPC(opts currency.Options, client RPC, log logger.Logger) (*Adapter, error) {
	a, err := New(opts, log)
	if err != nil {
		return nil, err
	}
	a.client.Store(&client)
	return a, nil
}

func (a *Adapter) setPublicKey(raw []byte) error {
	if len(raw) != solana.PublicKeyLength {
		return &currency.SigningError{Currency: Name, Err: fmt.Errorf("public key is %d bytes", len(raw))}
	}
	pub := solana.PublicKeyFromBytes(raw)
	a.pub.Store(&pub)
	return nil
}

func (a *Adapter) provider() RPC {
	if c := a.client.Load(); c != nil {
		return *c
	}
	var c RPC = rpc.New(a.cfg.ProviderURL)
	a.client.Store(&c)
	return c
}

// Ready fetches the public key of a delegated signer.
func (a *Adapter) Ready(ctx context.Context) error {
	_, err := a.publicKey(ctx)
	return err
}

func (a *Adapter) publicKey(ctx context.Context) (solana.PublicKey, error) {
	if pub := a.pub.Load(); pub != nil {
		return *pub, nil
	}
	if a.cred.PublicKeyFunc == nil {
		return solana.PublicKey{}, &currency.SigningError{Currency: Name, Err: errors.New("no public key available")}
	}
	raw, err := a.cred.PublicKeyFunc(ctx)
	if err != nil {
		return solana.PublicKey{}, &currency.SigningError{Currency: Name, Err: err}
	}
	if err := a.setPublicKey(raw); err != nil {
		return solana.PublicKey{}, err
	}
	return *a.pub.Load(), nil
}

func (a *Adapter) Config() currency.Config { return a.cfg }

func (a *Adapter) Address() string {
	if pub := a.pub.Load(); pub != nil {
		return pub.String()
	}
	return ""
}

// GetTx reads the signature status and, when available, the balance
// change of the recipient.
func (a *Adapter) GetTx(ctx context.Context, id string) (*currency.Tx, error) {
	sig, err := solana.SignatureFromBase58(id)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", id, err)
	}
	client := a.provider()

	statuses, err := client.GetSignatureStatuses(ctx, true, sig)
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (len(statuses.Value) == 0 || statuses.Value[0] == nil)) {
		return nil, &currency.NotFoundError{Currency: Name, ID: id}
	}
	if err != nil {
		return nil, currency.QueryError(Name, "get signature status", err)
	}
	status := statuses.Value[0]

	out := &currency.Tx{Amount: decimal.Zero}
	if status.Err == nil {
		finalized := status.ConfirmationStatus == rpc.ConfirmationStatusFinalized
		enough := status.Confirmations != nil && *status.Confirmations >= a.cfg.MinConfirm
		out.Confirmed = finalized || enough
		out.Pending = !out.Confirmed
	}

	maxVersion := uint64(0)
	res, err := client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil || res == nil || res.Transaction == nil || res.Meta == nil {
		// processed but not yet visible at confirmed commitment
		return out, nil
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil || len(tx.Message.AccountKeys) < 2 {
		return out, nil
	}
	out.From = tx.Message.AccountKeys[0].String()
	out.To = tx.Message.AccountKeys[1].String()
	if len(res.Meta.PreBalances) > 1 && len(res.Meta.PostBalances) > 1 {
		out.Amount = decimal.NewFromUint64(res.Meta.PostBalances[1]).Sub(decimal.NewFromUint64(res.Meta.PreBalances[1]))
	}
	return out, nil
}

// OwnerToAddress base58 encodes a 32-byte public key.
func (a *Adapter) OwnerToAddress(owner []byte) (string, error) {
	if len(owner) != solana.PublicKeyLength {
		return "", fmt.Errorf("invalid owner length %d", len(owner))
	}
	return base58.Encode(owner), nil
}

func (a *Adapter) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if a.key == nil {
		sig, err := a.cred.SignFunc(ctx, data)
		if err != nil {
			return nil, &currency.SigningError{Currency: Name, Err: err}
		}
		return sig, nil
	}
	sig, err := a.key.Sign(data)
	if err != nil {
		return nil, &currency.SigningError{Currency: Name, Err: err}
	}
	return sig[:], nil
}

func (a *Adapter) Verify(pub, data, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, data, signature)
}

// GetCurrentHeight returns the current slot.
func (a *Adapter) GetCurrentHeight(ctx context.Context) (uint64, error) {
	slot, err := a.provider().GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, currency.QueryError(Name, "get slot", err)
	}
	return slot, nil
}

func (a *Adapter) transfer(ctx context.Context, amount decimal.Decimal, to string) (*Transaction, error) {
	from, err := a.publicKey(ctx)
	if err != nil {
		return nil, err
	}
	recipient, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) || amount.BigInt().BitLen() > 64 {
		return nil, fmt.Errorf("invalid lamport amount %s", amount)
	}

	latest, err := a.provider().GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, currency.QueryError(Name, "get blockhash", err)
	}
	if latest == nil || latest.Value == nil {
		return nil, currency.QueryError(Name, "get blockhash", errors.New("empty response"))
	}
	return CreateTransferTransaction(from, recipient, amount.BigInt().Uint64(), latest.Value.Blockhash), nil
}

// GetFee asks the cluster what a transfer message would cost.
func (a *Adapter) GetFee(ctx context.Context, amount decimal.Decimal, to string) (decimal.Decimal, error) {
	tx, err := a.transfer(ctx, amount, to)
	if err != nil {
		return decimal.Zero, err
	}
	stx, err := tx.Build()
	if err != nil {
		return decimal.Zero, err
	}
	res, err := a.provider().GetFeeForMessage(ctx, stx.Message.ToBase64(), rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, currency.QueryError(Name, "get fee", err)
	}
	if res == nil || res.Value == nil {
		return decimal.Zero, currency.QueryError(Name, "get fee", errors.New("blockhash expired"))
	}
	return currency.CeilFee(decimal.NewFromUint64(*res.Value)), nil
}

func (a *Adapter) SendTx(ctx context.Context, raw []byte) (string, error) {
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}
	sig, err := a.provider().SendTransaction(ctx, tx)
	if err != nil {
		return "", currency.QueryError(Name, "send tx", err)
	}
	a.log.Debug("solana transaction sent", map[string]any{"signature": sig.String()})
	return sig.String(), nil
}

// CreateTx builds a signed system transfer. The fee is set by the cluster,
// so a supplied fee is ignored.
func (a *Adapter) CreateTx(ctx context.Context, amount decimal.Decimal, to string, _ *decimal.Decimal) (*currency.Transfer, error) {
	tx, err := a.transfer(ctx, amount, to)
	if err != nil {
		return nil, err
	}
	stx, err := tx.BuildAndSign(ctx, a.Sign)
	if err != nil {
		return nil, &currency.SigningError{Currency: Name, Err: err}
	}
	raw, err := stx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return &currency.Transfer{ID: stx.Signatures[0].String(), Tx: raw}, nil
}

// GetPublicKey returns the base58 public key.
func (a *Adapter) GetPublicKey(ctx context.Context) (string, error) {
	pub, err := a.publicKey(ctx)
	if err != nil {
		return "", err
	}
	return pub.String(), nil
}

func (a *Adapter) Owner(ctx context.Context) ([]byte, error) {
	pub, err := a.publicKey(ctx)
	if err != nil {
		return nil, err
	}
	return pub.Bytes(), nil
}
