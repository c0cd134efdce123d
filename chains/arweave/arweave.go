// Package arweave is the Arweave chain adapter: JWK wallets, RSA-PSS
// signatures and an HTTP gateway as the chain provider.
package arweave

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/logger"
)

const (
	Name              = "arweave"
	DefaultGatewayURL = "https://arweave.net"
	DefaultMinConfirm = 5

	// OwnerLength is the size of a 4096-bit RSA modulus.
	OwnerLength = 512
)

// GatewayConfigurer can be passed in Options.Extra["gateway"] by wallets that
// carry their own network settings. It is consulted before ProviderURL.
type GatewayConfigurer interface {
	GatewayURL() (string, bool)
}

type gateway struct {
	query *api.Client
	// post never retries so a broadcast is attempted once
	post *api.Client
}

// Adapter implements currency.Currency for Arweave.
type Adapter struct {
	cfg  currency.Config
	cred currency.Credential
	key  *rsa.PrivateKey
	log  logger.Logger

	owner   atomic.Pointer[[]byte]
	address atomic.Pointer[string]
	gw      atomic.Pointer[gateway]
	apiOpts []api.Option
}

var (
	_ currency.Currency    = (*Adapter)(nil)
	_ currency.Initializer = (*Adapter)(nil)
)

// New creates an Arweave adapter. Credential.PrivateKey holds the JWK file
// contents; a delegated signer supplies the 512-byte owner as PublicKey or
// through PublicKeyFunc.
func New(opts currency.Options, log logger.Logger, apiOpts ...api.Option) (*Adapter, error) {
	if err := opts.Credential.CheckSingleSigner(Name); err != nil {
		return nil, err
	}

	a := &Adapter{
		cred:    opts.Credential,
		log:     logger.OrNoop(log),
		apiOpts: apiOpts,
		cfg: currency.Config{
			Name:          Name,
			Ticker:        "AR",
			Base:          currency.NewBase("winston", 12),
			MinConfirm:    DefaultMinConfirm,
			NeedsFee:      true,
			IsSlow:        true,
			SignatureType: currency.SignatureArweave,
			ProviderURL:   gatewayURL(opts),
			Precision:     opts.PrecisionOrDefault(),
		},
	}

	switch {
	case !opts.Credential.Delegated():
		key, err := ParseJWK(opts.Credential.PrivateKey)
		if err != nil {
			return nil, &currency.SigningError{Currency: Name, Err: err}
		}
		a.key = key
		a.setOwner(key.N.Bytes())
	case len(opts.Credential.PublicKey) > 0:
		a.setOwner(opts.Credential.PublicKey)
	}
	return a, nil
}

func gatewayURL(opts currency.Options) string {
	if gc, ok := opts.Extra["gateway"].(GatewayConfigurer); ok {
		if u, ok := gc.GatewayURL(); ok && u != "" {
			return u
		}
	}
	if opts.ProviderURL != "" {
		return opts.ProviderURL
	}
	return DefaultGatewayURL
}

func (a *Adapter) setOwner(owner []byte) {
	addr := ownerAddress(owner)
	a.owner.Store(&owner)
	a.address.Store(&addr)
}

// Ready fetches the owner from a delegated signer.
func (a *Adapter) Ready(ctx context.Context) error {
	if a.owner.Load() != nil {
		return nil
	}
	if a.cred.PublicKeyFunc == nil {
		return &currency.SigningError{Currency: Name, Err: fmt.Errorf("no public key available")}
	}
	pub, err := a.cred.PublicKeyFunc(ctx)
	if err != nil {
		return &currency.SigningError{Currency: Name, Err: err}
	}
	a.setOwner(pub)
	return nil
}

func (a *Adapter) Config() currency.Config { return a.cfg }

func (a *Adapter) Address() string {
	if p := a.address.Load(); p != nil {
		return *p
	}
	return ""
}

func (a *Adapter) provider() *gateway {
	if gw := a.gw.Load(); gw != nil {
		return gw
	}
	gw := &gateway{
		query: api.NewClient(a.cfg.ProviderURL, a.apiOpts...),
		post:  api.NewClient(a.cfg.ProviderURL, append(slices.Clone(a.apiOpts), api.WithRetries(0))...),
	}
	a.gw.Store(gw)
	return gw
}

type txStatus struct {
	BlockHeight           uint64 `json:"block_height"`
	NumberOfConfirmations uint64 `json:"number_of_confirmations"`
}

// GetTx reports a transfer's status. A 202 from the gateway means the
// transaction is in the mempool.
func (a *Adapter) GetTx(ctx context.Context, id string) (*currency.Tx, error) {
	gw := a.provider()
	resp, err := gw.query.Get(ctx, "/tx/"+id+"/status", nil)
	if err != nil {
		return nil, currency.QueryError(Name, "get tx status", err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, &currency.NotFoundError{Currency: Name, ID: id}
	case http.StatusAccepted:
		return &currency.Tx{Amount: decimal.Zero, Pending: true}, nil
	}
	if err := api.CheckAndThrow(resp, "getting transaction status"); err != nil {
		return nil, currency.QueryError(Name, "get tx status", err)
	}

	var status txStatus
	if err := resp.JSON(&status); err != nil {
		return nil, currency.QueryError(Name, "get tx status", err)
	}

	resp, err = gw.query.Get(ctx, "/tx/"+id, nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting transaction")
	}
	if err != nil {
		return nil, currency.QueryError(Name, "get tx", err)
	}
	var tx Transaction
	if err := resp.JSON(&tx); err != nil {
		return nil, currency.QueryError(Name, "get tx", err)
	}

	out := &currency.Tx{
		To:        tx.Target,
		Amount:    decimal.Zero,
		Confirmed: status.NumberOfConfirmations >= a.cfg.MinConfirm,
	}
	if tx.Quantity != "" {
		if out.Amount, err = currency.ParseAtomic(tx.Quantity); err != nil {
			return nil, currency.QueryError(Name, "get tx", err)
		}
	}
	if tx.Owner != "" {
		owner, err := unb64(tx.Owner)
		if err != nil {
			return nil, currency.QueryError(Name, "get tx", fmt.Errorf("invalid owner: %w", err))
		}
		out.From = ownerAddress(owner)
	}
	return out, nil
}

func ownerAddress(owner []byte) string {
	h := sha256.Sum256(owner)
	return b64(h[:])
}

// OwnerToAddress returns base64url(sha256(owner)).
func (a *Adapter) OwnerToAddress(owner []byte) (string, error) {
	if len(owner) == 0 {
		return "", fmt.Errorf("empty owner")
	}
	return ownerAddress(owner), nil
}

// Sign produces an RSA-PSS SHA-256 signature over data.
func (a *Adapter) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if a.key == nil {
		sig, err := a.cred.SignFunc(ctx, data)
		if err != nil {
			return nil, &currency.SigningError{Currency: Name, Err: err}
		}
		return sig, nil
	}
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, a.key, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return nil, &currency.SigningError{Currency: Name, Err: err}
	}
	return sig, nil
}

// Verify checks an RSA-PSS signature made by the owner modulus pub.
func (a *Adapter) Verify(pub, data, signature []byte) bool {
	return verify(pub, data, signature)
}

func verify(pub, data, signature []byte) bool {
	if len(pub) == 0 {
		return false
	}
	digest := sha256.Sum256(data)
	err := rsa.VerifyPSS(publicKeyFromOwner(pub), crypto.SHA256, digest[:], signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
	return err == nil
}

func (a *Adapter) GetCurrentHeight(ctx context.Context) (uint64, error) {
	resp, err := a.provider().query.Get(ctx, "/info", nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting network info")
	}
	if err != nil {
		return 0, currency.QueryError(Name, "get height", err)
	}
	var info struct {
		Height uint64 `json:"height"`
	}
	if err := resp.JSON(&info); err != nil {
		return 0, currency.QueryError(Name, "get height", err)
	}
	return info.Height, nil
}

// GetFee quotes the reward for a wallet-to-wallet transfer to to.
func (a *Adapter) GetFee(ctx context.Context, _ decimal.Decimal, to string) (decimal.Decimal, error) {
	path := "/price/0"
	if to != "" {
		path += "/" + to
	}
	resp, err := a.provider().query.Get(ctx, path, nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting price")
	}
	if err != nil {
		return decimal.Zero, currency.QueryError(Name, "get fee", err)
	}
	fee, err := currency.ParseAtomic(resp.Text())
	if err != nil {
		return decimal.Zero, currency.QueryError(Name, "get fee", err)
	}
	return currency.CeilFee(fee), nil
}

// SendTx posts a JSON transaction built by CreateTx.
func (a *Adapter) SendTx(ctx context.Context, raw []byte) (string, error) {
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return "", fmt.Errorf("failed to parse transaction: %w", err)
	}
	resp, err := a.provider().post.PostBytes(ctx, "/tx", "application/json", raw)
	if err != nil {
		return "", currency.QueryError(Name, "send tx", err)
	}
	if err := api.CheckAndThrow(resp, "posting transaction"); err != nil {
		return "", currency.QueryError(Name, "send tx", err)
	}
	a.log.Debug("arweave transaction posted", map[string]any{"id": tx.ID})
	return tx.ID, nil
}

// CreateTx builds and signs a format 2 transfer of amount winston to to.
func (a *Adapter) CreateTx(ctx context.Context, amount decimal.Decimal, to string, fee *decimal.Decimal) (*currency.Transfer, error) {
	owner, err := a.Owner(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := a.provider().query.Get(ctx, "/tx_anchor", nil)
	if err == nil {
		err = api.CheckAndThrow(resp, "getting transaction anchor")
	}
	if err != nil {
		return nil, currency.QueryError(Name, "get anchor", err)
	}

	var reward decimal.Decimal
	if fee != nil {
		reward = currency.CeilFee(*fee)
	} else if reward, err = a.GetFee(ctx, amount, to); err != nil {
		return nil, err
	}

	tx := &Transaction{
		Format:   2,
		LastTx:   strings.TrimSpace(resp.Text()),
		Owner:    b64(owner),
		Tags:     []Tag{},
		Target:   to,
		Quantity: amount.String(),
		DataSize: "0",
		Reward:   reward.String(),
	}
	msg, err := tx.SignatureData()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare transaction: %w", err)
	}
	sig, err := a.Sign(ctx, msg)
	if err != nil {
		return nil, err
	}
	tx.SetSignature(sig)

	data, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return &currency.Transfer{ID: tx.ID, Tx: data}, nil
}

// GetPublicKey returns the owner modulus, base64url encoded.
func (a *Adapter) GetPublicKey(ctx context.Context) (string, error) {
	owner, err := a.Owner(ctx)
	if err != nil {
		return "", err
	}
	return b64(owner), nil
}

func (a *Adapter) Owner(ctx context.Context) ([]byte, error) {
	if p := a.owner.Load(); p != nil {
		return *p, nil
	}
	if err := a.Ready(ctx); err != nil {
		return nil, err
	}
	return *a.owner.Load(), nil
}
