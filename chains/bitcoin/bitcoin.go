// Package bitcoin is the Bitcoin chain adapter. It can fund a bundler
// balance but cannot sign data items.
package bitcoin

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/logger"
)

const (
	Name              = "bitcoin"
	MainnetAPI        = "https://mempool.space/api"
	TestnetAPI        = "https://mempool.space/testnet/api"
	DefaultMinConfirm = 1

	// fallbackFeeRate is used when the fee endpoint returns nothing usable
	fallbackFeeRate = 10
)

type esplora struct {
	query *api.Client
	post  *api.Client
}

// Adapter implements currency.Currency for Bitcoin using an Esplora API.
type Adapter struct {
	cfg     currency.Config
	params  *chaincfg.Params
	key     *btcec.PrivateKey
	address string
	log     logger.Logger

	client  atomic.Pointer[esplora]
	apiOpts []api.Option
}

var _ currency.Currency = (*Adapter)(nil)

// New creates a Bitcoin adapter. Credential.PrivateKey is a raw 32-byte
// secp256k1 key. Set Options.Extra["network"] to "testnet" for testnet3.
func New(opts currency.Options, log logger.Logger, apiOpts ...api.Option) (*Adapter, error) {
	if opts.Credential.Delegated() {
		return nil, &currency.SigningError{Currency: Name, Err: errors.New("delegated signing is not supported")}
	}
	if err := opts.Credential.CheckSingleSigner(Name); err != nil {
		return nil, err
	}

	params, provider := &chaincfg.MainNetParams, MainnetAPI
	if network, _ := opts.String("network"); network == "testnet" {
		params, provider = &chaincfg.TestNet3Params, TestnetAPI
	}
	if opts.ProviderURL != "" {
		provider = opts.ProviderURL
	}

	if len(opts.Credential.PrivateKey) != btcec.PrivKeyBytesLen {
		return nil, &currency.SigningError{Currency: Name, Err: fmt.Errorf("private key is %d bytes", len(opts.Credential.PrivateKey))}
	}
	key, _ := btcec.PrivKeyFromBytes(opts.Credential.PrivateKey)
	addr, err := CreateP2WPKHAddress(key.PubKey(), params)
	if err != nil {
		return nil, &currency.SigningError{Currency: Name, Err: err}
	}

	return &Adapter{
		params:  params,
		key:     key,
		address: addr.EncodeAddress(),
		log:     logger.OrNoop(log),
		apiOpts: apiOpts,
		cfg: currency.Config{
			Name:          Name,
			Ticker:        "BTC",
			Base:          currency.NewBase("satoshi", 8),
			MinConfirm:    DefaultMinConfirm,
			NeedsFee:      true,
			IsSlow:        true,
			SignatureType: currency.SignatureNone,
			ProviderURL:   provider,
			Precision:     opts.PrecisionOrDefault(),
		},
	}, nil
}

func (a *Adapter) provider() *esplora {
	if c := a.client.Load(); c != nil {
		return c
	}
	c := &esplora{
		query: api.NewClient(a.cfg.ProviderURL, a.apiOpts...),
		post:  api.NewClient(a.cfg.ProviderURL, append(slices.Clone(a.apiOpts), api.WithRetries(0))...),
	}
	a.client.Store(c)
	return c
}

func (a *Adapter) Config() currency.Config { return a.cfg }

// Address is the signer's native segwit address.
func (a *Adapter) Address() string { return a.address }

type esploraTx struct {
	TxID string `json:"txid"`
	Vin  []struct {
		Prevout *struct {
			Address string `json:"scriptpubkey_address"`
			Value   int64  `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		Address string `json:"scriptpubkey_address"`
		Value   int64  `json:"value"`
	} `json:"vout"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint64 `json:"block_height"`
	} `json:"status"`
}

// GetTx reports the first output not paying back to the sender.
func (a *Adapter) GetTx(ctx context.Context, id string) (*currency.Tx, error) {
	resp, err := a.provider().query.Get(ctx, "/tx/"+id, nil)
	if err != nil {
		return nil, currency.QueryError(Name, "get tx", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &currency.NotFoundError{Currency: Name, ID: id}
	}
	if err := api.CheckAndThrow(resp, "getting transaction"); err != nil {
		return nil, currency.QueryError(Name, "get tx", err)
	}
	var tx esploraTx
	if err := resp.JSON(&tx); err != nil {
		return nil, currency.QueryError(Name, "get tx", err)
	}

	out := &currency.Tx{Amount: decimal.Zero, Pending: !tx.Status.Confirmed}
	if len(tx.Vin) > 0 && tx.Vin[0].Prevout != nil {
		out.From = tx.Vin[0].Prevout.Address
	}
	for _, v := range tx.Vout {
		if v.Address != out.From || len(tx.Vout) == 1 {
			out.To = v.Address
			out.Amount = decimal.NewFromInt(v.Value)
			break
		}
	}

	if tx.Status.Confirmed {
		tip, err := a.GetCurrentHeight(ctx)
		if err != nil {
			return nil, err
		}
		var confirmations uint64
		if tip >= tx.Status.BlockHeight {
			confirmations = tip - tx.Status.BlockHeight + 1
		}
		out.Confirmed = confirmations >= a.cfg.MinConfirm
	}
	return out, nil
}

// OwnerToAddress maps a compressed public key to its P2WPKH address.
func (a *Adapter) OwnerToAddress(owner []byte) (string, error) {
	pub, err := btcec.ParsePubKey(owner)
	if err != nil {
		return "", fmt.Errorf("invalid owner: %w", err)
	}
	addr, err := CreateP2WPKHAddress(pub, a.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// Sign returns a DER signature over sha256d(data).
func (a *Adapter) Sign(_ context.Context, data []byte) ([]byte, error) {
	return ecdsa.Sign(a.key, chainhash.DoubleHashB(data)).Serialize(), nil
}

func (a *Adapter) Verify(pub, data, signature []byte) bool {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(chainhash.DoubleHashB(data), key)
}

func (a *Adapter) GetCurrentHeight(ctx context.Context) (uint64, error) {
	resp, err := a.provider().query.Get(ctx, "/blocks/tip/height", nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting tip height")
	}
	if err != nil {
		return 0, currency.QueryError(Name, "get height", err)
	}
	h, err := strconv.ParseUint(resp.Text(), 10, 64)
	if err != nil {
		return 0, currency.QueryError(Name, "get height", err)
	}
	return h, nil
}

func (a *Adapter) feeRate(ctx context.Context) (int64, error) {
	resp, err := a.provider().query.Get(ctx, "/v1/fees/recommended", nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting fee estimate")
	}
	if err != nil {
		return 0, currency.QueryError(Name, "get fee rate", err)
	}
	var fees struct {
		FastestFee  int64 `json:"fastestFee"`
		HalfHourFee int64 `json:"halfHourFee"`
		HourFee     int64 `json:"hourFee"`
	}
	if err := resp.JSON(&fees); err != nil {
		return 0, currency.QueryError(Name, "get fee rate", err)
	}
	if fees.HalfHourFee > 0 {
		return fees.HalfHourFee, nil
	}
	a.log.Warn("fee estimate unavailable, using fallback rate", map[string]any{"sat_per_vbyte": fallbackFeeRate})
	return fallbackFeeRate, nil
}

type esploraUTXO struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value int64  `json:"value"`
}

func (a *Adapter) utxos(ctx context.Context) ([]UTXO, error) {
	resp, err := a.provider().query.Get(ctx, "/address/"+a.address+"/utxo", nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting utxos")
	}
	if err != nil {
		return nil, currency.QueryError(Name, "get utxos", err)
	}
	var raw []esploraUTXO
	if err := resp.JSON(&raw); err != nil {
		return nil, currency.QueryError(Name, "get utxos", err)
	}
	out := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		out = append(out, UTXO{TxID: u.TxID, Vout: u.Vout, Value: u.Value})
	}
	return out, nil
}

func satoshis(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) || !amount.BigInt().IsInt64() {
		return 0, fmt.Errorf("invalid satoshi amount %s", amount)
	}
	return amount.IntPart(), nil
}

// GetFee estimates the fee of spending enough UTXOs to cover amount.
func (a *Adapter) GetFee(ctx context.Context, amount decimal.Decimal, _ string) (decimal.Decimal, error) {
	sats, err := satoshis(amount)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := a.feeRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	utxos, err := a.utxos(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	_, fee, _, err := SelectUTXOs(utxos, sats, rate)
	if err != nil {
		return decimal.Zero, currency.QueryError(Name, "get fee", err)
	}
	return currency.CeilFee(decimal.NewFromInt(fee)), nil
}

// SendTx posts a raw transaction and returns the id Esplora reports.
func (a *Adapter) SendTx(ctx context.Context, raw []byte) (string, error) {
	resp, err := a.provider().post.PostBytes(ctx, "/tx", "text/plain", []byte(EncodeHex(raw)))
	if err == nil {
		err = api.CheckAndThrow(resp, "broadcasting transaction")
	}
	if err != nil {
		return "", currency.QueryError(Name, "send tx", err)
	}
	return resp.Text(), nil
}

// CreateTx spends the signer's UTXOs to pay amount to to. A supplied fee
// replaces the estimate and more inputs are spent when it needs them.
func (a *Adapter) CreateTx(ctx context.Context, amount decimal.Decimal, to string, fee *decimal.Decimal) (*currency.Transfer, error) {
	sats, err := satoshis(amount)
	if err != nil {
		return nil, err
	}
	recipient, err := ParseAddress(to, a.params)
	if err != nil {
		return nil, err
	}
	utxos, err := a.utxos(ctx)
	if err != nil {
		return nil, err
	}

	var inputs []UTXO
	var change int64
	if fee != nil {
		inputs, _, change, err = SelectUTXOsWithFee(utxos, sats, currency.CeilFee(*fee).IntPart())
	} else {
		rate, rerr := a.feeRate(ctx)
		if rerr != nil {
			return nil, rerr
		}
		inputs, _, change, err = SelectUTXOs(utxos, sats, rate)
	}
	if err != nil {
		return nil, err
	}

	tx := NewTransaction()
	for _, u := range inputs {
		if err := tx.AddInput(u); err != nil {
			return nil, err
		}
	}
	if err := tx.AddOutput(sats, recipient); err != nil {
		return nil, err
	}
	if change > 0 {
		self, err := ParseAddress(a.address, a.params)
		if err != nil {
			return nil, err
		}
		if err := tx.AddOutput(change, self); err != nil {
			return nil, err
		}
	}
	if err := tx.Sign(a.key, a.params); err != nil {
		return nil, &currency.SigningError{Currency: Name, Err: err}
	}
	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	return &currency.Transfer{ID: tx.Hash(), Tx: raw}, nil
}

// GetPublicKey returns the hex compressed public key.
func (a *Adapter) GetPublicKey(context.Context) (string, error) {
	return hex.EncodeToString(a.key.PubKey().SerializeCompressed()), nil
}

func (a *Adapter) Owner(context.Context) ([]byte, error) {
	return a.key.PubKey().SerializeCompressed(), nil
}

