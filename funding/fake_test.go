package funding

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/currency"
)

// fakeCurrency is an in-memory adapter. GetTx answers from txs in order,
// repeating the last entry.
type fakeCurrency struct {
	mu  sync.Mutex
	cfg currency.Config
	key ed25519.PrivateKey

	txs      []*currency.Tx
	txErr    error
	getTxN   int
	fee      decimal.Decimal
	createID string
	sendID   string
	sendErr  error

	createdAmount decimal.Decimal
	createdTo     string
	createdFee    *decimal.Decimal
	sent          [][]byte
}

func newFakeCurrency(slow, needsFee bool) *fakeCurrency {
	return &fakeCurrency{
		cfg: currency.Config{
			Name:          "fake",
			Base:          currency.NewBase("atom", 12),
			MinConfirm:    1,
			NeedsFee:      needsFee,
			IsSlow:        slow,
			SignatureType: currency.SignatureED25519,
		},
		key: ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)),
	}
}

var _ currency.Currency = (*fakeCurrency)(nil)

func (f *fakeCurrency) Config() currency.Config { return f.cfg }
func (f *fakeCurrency) Address() string         { return "fake-address" }

func (f *fakeCurrency) GetTx(context.Context, string) (*currency.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getTxN++
	if f.txErr != nil {
		return nil, f.txErr
	}
	if len(f.txs) == 0 {
		return &currency.Tx{Pending: true}, nil
	}
	i := min(f.getTxN, len(f.txs)) - 1
	return f.txs[i], nil
}

func (f *fakeCurrency) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getTxN
}

func (f *fakeCurrency) OwnerToAddress(owner []byte) (string, error) {
	return hex.EncodeToString(owner), nil
}

func (f *fakeCurrency) Sign(_ context.Context, data []byte) ([]byte, error) {
	return ed25519.Sign(f.key, data), nil
}

func (f *fakeCurrency) Verify(pub, data, sig []byte) bool {
	return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, data, sig)
}

func (f *fakeCurrency) GetCurrentHeight(context.Context) (uint64, error) { return 100, nil }

func (f *fakeCurrency) GetFee(context.Context, decimal.Decimal, string) (decimal.Decimal, error) {
	return f.fee, nil
}

func (f *fakeCurrency) SendTx(_ context.Context, tx []byte) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, tx)
	return f.sendID, nil
}

func (f *fakeCurrency) CreateTx(_ context.Context, amount decimal.Decimal, to string, fee *decimal.Decimal) (*currency.Transfer, error) {
	if to == "" {
		return nil, errors.New("no recipient")
	}
	f.createdAmount, f.createdTo, f.createdFee = amount, to, fee
	return &currency.Transfer{ID: f.createID, Tx: []byte("signed-tx")}, nil
}

func (f *fakeCurrency) GetPublicKey(context.Context) (string, error) {
	return hex.EncodeToString(f.key.Public().(ed25519.PublicKey)), nil
}

func (f *fakeCurrency) Owner(context.Context) ([]byte, error) {
	return f.key.Public().(ed25519.PublicKey), nil
}
