// Package ethereum is the chain adapter for Ethereum and the other EVM
// networks the bundler accepts, paying either in the native coin or in an
// ERC-20 token.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/logger"
)

// Backend is the part of an ethclient.Client the adapter uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg goethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

// Adapter implements currency.Currency for EVM networks.
type Adapter struct {
	cfg      currency.Config
	cred     currency.Credential
	key      *ecdsa.PrivateKey
	contract *common.Address
	log      logger.Logger

	pub     atomic.Pointer[ecdsa.PublicKey]
	chainID atomic.Pointer[big.Int]
	backend atomic.Pointer[Backend]
	dial    func(ctx context.Context, url string) (Backend, error)
}

var (
	_ currency.Currency    = (*Adapter)(nil)
	_ currency.Initializer = (*Adapter)(nil)
)

// New creates an adapter for the EVM network opts.Name. Credential.PrivateKey
// is a raw 32-byte secp256k1 key. A delegated SignFunc receives 32-byte
// digests for transactions and raw messages for Sign.
func New(opts currency.Options, log logger.Logger) (*Adapter, error) {
	network, ok := Lookup(opts.Name)
	if !ok {
		return nil, &currency.UnsupportedCurrencyError{Currency: opts.Name}
	}
	if err := opts.Credential.CheckSingleSigner(network.Name); err != nil {
		return nil, err
	}

	rpc := network.RPC
	if opts.ProviderURL != "" {
		rpc = opts.ProviderURL
	}
	decimals := int32(18)
	if d, ok := opts.Extra["decimals"].(int); ok && d > 0 {
		decimals = int32(d)
	}

	a := &Adapter{
		cred: opts.Credential,
		log:  logger.OrNoop(log),
		dial: func(ctx context.Context, url string) (Backend, error) {
			return ethclient.DialContext(ctx, url)
		},
		cfg: currency.Config{
			Name:          network.Name,
			Ticker:        network.Ticker,
			Base:          currency.NewBase("wei", decimals),
			MinConfirm:    network.MinConfirm,
			NeedsFee:      true,
			IsSlow:        true,
			SignatureType: currency.SignatureEthereum,
			ProviderURL:   rpc,
			Precision:     opts.PrecisionOrDefault(),
		},
	}

	if opts.ContractAddress != "" {
		if !common.IsHexAddress(opts.ContractAddress) {
			return nil, fmt.Errorf("invalid contract address %q", opts.ContractAddress)
		}
		addr := common.HexToAddress(opts.ContractAddress)
		a.contract = &addr
	}

	switch {
	case !opts.Credential.Delegated():
		key, err := crypto.ToECDSA(opts.Credential.PrivateKey)
		if err != nil {
			return nil, &currency.SigningError{Currency: network.Name, Err: err}
		}
		a.key = key
		a.pub.Store(&key.PublicKey)
	case len(opts.Credential.PublicKey) > 0:
		pub, err := crypto.UnmarshalPubkey(opts.Credential.PublicKey)
		if err != nil {
			return nil, &currency.SigningError{Currency: network.Name, Err: err}
		}
		a.pub.Store(pub)
	}
	return a, nil
}

// NewWithBackend creates an adapter bound to an existing backend.
func NewWithBackend(opts currency.Options, backend Backend, log logger.Logger) (*Adapter, error) {
	a, err := New(opts, log)
	if err != nil {
		return nil, err
	}
	a.backend.Store(&backend)
	return a, nil
}

func (a *Adapter) provider(ctx context.Context) (Backend, error) {
	if b := a.backend.Load(); b != nil {
		return *b, nil
	}
	b, err := a.dial(ctx, a.cfg.ProviderURL)
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "dial provider", err)
	}
	a.backend.Store(&b)
	return b, nil
}

// Ready resolves the chain id and, for delegated signers, the public key.
func (a *Adapter) Ready(ctx context.Context) error {
	if _, err := a.publicKey(ctx); err != nil {
		return err
	}
	_, err := a.getChainID(ctx)
	return err
}

func (a *Adapter) publicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	if pub := a.pub.Load(); pub != nil {
		return pub, nil
	}
	if a.cred.PublicKeyFunc == nil {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: errors.New("no public key available")}
	}
	raw, err := a.cred.PublicKeyFunc(ctx)
	if err != nil {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
	}
	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
	}
	a.pub.Store(pub)
	return pub, nil
}

func (a *Adapter) getChainID(ctx context.Context) (*big.Int, error) {
	if id := a.chainID.Load(); id != nil {
		return id, nil
	}
	b, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	id, err := b.ChainID(ctx)
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "get chain id", err)
	}
	a.chainID.Store(id)
	return id, nil
}

func (a *Adapter) Config() currency.Config { return a.cfg }

// Address is the lower-case hex address of the signer.
func (a *Adapter) Address() string {
	pub := a.pub.Load()
	if pub == nil {
		return ""
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
}

func (a *Adapter) from() (common.Address, error) {
	pub := a.pub.Load()
	if pub == nil {
		return common.Address{}, &currency.SigningError{Currency: a.cfg.Name, Err: errors.New("adapter is not ready")}
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// GetTx reports a transfer. For token payments From/To/Amount come from
// the decoded transfer call.
func (a *Adapter) GetTx(ctx context.Context, id string) (*currency.Tx, error) {
	b, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	hash := common.HexToHash(id)

	tx, pending, err := b.TransactionByHash(ctx, hash)
	if errors.Is(err, goethereum.NotFound) {
		return nil, &currency.NotFoundError{Currency: a.cfg.Name, ID: id}
	}
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "get tx", err)
	}

	out := &currency.Tx{Amount: decimal.NewFromBigInt(tx.Value(), 0), Pending: pending}
	if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		out.From = strings.ToLower(from.Hex())
	}
	if to := tx.To(); to != nil {
		out.To = strings.ToLower(to.Hex())
	}
	if a.contract != nil {
		if recipient, amount, err := unpackTransfer(tx.Data()); err == nil {
			out.To = strings.ToLower(recipient.Hex())
			out.Amount = decimal.NewFromBigInt(amount, 0)
		}
	}
	if pending {
		return out, nil
	}

	receipt, err := b.TransactionReceipt(ctx, hash)
	if errors.Is(err, goethereum.NotFound) {
		out.Pending = true
		return out, nil
	}
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "get receipt", err)
	}
	head, err := b.BlockNumber(ctx)
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "get height", err)
	}

	// the including block counts as the first confirmation
	var confirmations uint64
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
		confirmations = head - receipt.BlockNumber.Uint64() + 1
	}
	out.Confirmed = receipt.Status == types.ReceiptStatusSuccessful && confirmations >= a.cfg.MinConfirm
	return out, nil
}

// OwnerToAddress maps a 65-byte uncompressed public key to its address.
func (a *Adapter) OwnerToAddress(owner []byte) (string, error) {
	pub, err := crypto.UnmarshalPubkey(owner)
	if err != nil {
		return "", fmt.Errorf("invalid owner: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Sign returns an EIP-191 personal signature over data with V in {27, 28}.
func (a *Adapter) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if a.key == nil {
		sig, err := a.cred.SignFunc(ctx, data)
		if err != nil {
			return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
		}
		return sig, nil
	}
	sig, err := crypto.Sign(accounts.TextHash(data), a.key)
	if err != nil {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Verify checks a personal signature against a 65-byte public key.
func (a *Adapter) Verify(pub, data, signature []byte) bool {
	if len(signature) != crypto.SignatureLength {
		return false
	}
	return crypto.VerifySignature(pub, accounts.TextHash(data), signature[:crypto.RecoveryIDOffset])
}

func (a *Adapter) GetCurrentHeight(ctx context.Context) (uint64, error) {
	b, err := a.provider(ctx)
	if err != nil {
		return 0, err
	}
	h, err := b.BlockNumber(ctx)
	if err != nil {
		return 0, currency.QueryError(a.cfg.Name, "get height", err)
	}
	return h, nil
}

type quote struct {
	msg      goethereum.CallMsg
	gasPrice *big.Int
	gas      uint64
}

func (a *Adapter) quote(ctx context.Context, b Backend, amount decimal.Decimal, to string) (*quote, error) {
	from, err := a.from()
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("invalid recipient address %q", to)
	}
	recipient := common.HexToAddress(to)
	value := amount.BigInt()

	msg := goethereum.CallMsg{From: from, To: &recipient, Value: value}
	if a.contract != nil {
		data, err := packTransfer(recipient, value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode transfer: %w", err)
		}
		msg = goethereum.CallMsg{From: from, To: a.contract, Value: big.NewInt(0), Data: data}
	}

	gasPrice, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "get gas price", err)
	}
	gas, err := b.EstimateGas(ctx, msg)
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "estimate gas", err)
	}
	return &quote{msg: msg, gasPrice: gasPrice, gas: gas}, nil
}

// GetFee is the suggested gas price times the estimated gas.
func (a *Adapter) GetFee(ctx context.Context, amount decimal.Decimal, to string) (decimal.Decimal, error) {
	b, err := a.provider(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := a.quote(ctx, b, amount, to)
	if err != nil {
		return decimal.Zero, err
	}
	fee := new(big.Int).Mul(q.gasPrice, new(big.Int).SetUint64(q.gas))
	return currency.CeilFee(decimal.NewFromBigInt(fee, 0)), nil
}

// SendTx broadcasts a binary encoded signed transaction.
func (a *Adapter) SendTx(ctx context.Context, raw []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}
	b, err := a.provider(ctx)
	if err != nil {
		return "", err
	}
	if err := b.SendTransaction(ctx, tx); err != nil {
		return "", currency.QueryError(a.cfg.Name, "send tx", err)
	}
	a.log.Debug("evm transaction sent", map[string]any{"currency": a.cfg.Name, "hash": tx.Hash().Hex()})
	return tx.Hash().Hex(), nil
}

// CreateTx builds and signs a legacy transaction. A supplied fee is spread
// over the estimated gas to derive the gas price.
func (a *Adapter) CreateTx(ctx context.Context, amount decimal.Decimal, to string, fee *decimal.Decimal) (*currency.Transfer, error) {
	if err := a.Ready(ctx); err != nil {
		return nil, err
	}
	b, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	q, err := a.quote(ctx, b, amount, to)
	if err != nil {
		return nil, err
	}
	nonce, err := b.PendingNonceAt(ctx, q.msg.From)
	if err != nil {
		return nil, currency.QueryError(a.cfg.Name, "get nonce", err)
	}

	gasPrice := q.gasPrice
	if fee != nil && q.gas > 0 {
		gasPrice = fee.Div(decimal.NewFromInt(int64(q.gas))).Ceil().BigInt()
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       q.msg.To,
		Value:    q.msg.Value,
		Gas:      q.gas,
		GasPrice: gasPrice,
		Data:     q.msg.Data,
	})

	chainID, err := a.getChainID(ctx)
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(chainID)
	signed, err := a.signTx(ctx, signer, unsigned)
	if err != nil {
		return nil, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return &currency.Transfer{ID: signed.Hash().Hex(), Tx: raw}, nil
}

func (a *Adapter) signTx(ctx context.Context, signer types.Signer, tx *types.Transaction) (*types.Transaction, error) {
	if a.key != nil {
		signed, err := types.SignTx(tx, signer, a.key)
		if err != nil {
			return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
		}
		return signed, nil
	}

	digest := signer.Hash(tx)
	sig, err := a.cred.SignFunc(ctx, digest[:])
	if err != nil {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
	}
	if len(sig) != crypto.SignatureLength {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: fmt.Errorf("signature is %d bytes", len(sig))}
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, &currency.SigningError{Currency: a.cfg.Name, Err: err}
	}
	return signed, nil
}

// GetPublicKey returns the 0x-prefixed uncompressed public key.
func (a *Adapter) GetPublicKey(ctx context.Context) (string, error) {
	owner, err := a.Owner(ctx)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(owner), nil
}

func (a *Adapter) Owner(ctx context.Context) ([]byte, error) {
	pub, err := a.publicKey(ctx)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(pub), nil
}
