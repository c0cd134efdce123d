package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/bundlr-go/currency"
)

type fakeRPC struct {
	statuses map[solana.Signature]*rpc.SignatureStatusesResult
	txs      map[solana.Signature]*rpc.GetTransactionResult
	sent     []*solana.Transaction
	fee      *uint64
	slot     uint64
}

func newFakeRPC() *fakeRPC {
	fee := uint64(5000)
	return &fakeRPC{
		statuses: map[solana.Signature]*rpc.SignatureStatusesResult{},
		txs:      map[solana.Signature]*rpc.GetTransactionResult{},
		fee:      &fee,
		slot:     250_000_000,
	}
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{f.statuses[sigs[0]]}}, nil
}

func (f *fakeRPC) GetTransaction(_ context.Context, sig solana.Signature, _ *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if tx, ok := f.txs[sig]; ok {
		return tx, nil
	}
	return nil, rpc.ErrNotFound
}

func (f *fakeRPC) GetSlot(context.Context, rpc.CommitmentType) (uint64, error) { return f.slot, nil }

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{1, 2, 3}}}, nil
}

func (f *fakeRPC) GetFeeForMessage(context.Context, string, rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error) {
	return &rpc.GetFeeForMessageResult{Value: f.fee}, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func newTestAdapter(t *testing.T, client RPC) (*Adapter, solana.PrivateKey) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	a, err := NewWithRPC(currency.Options{Credential: currency.Credential{PrivateKey: key}}, client, nil)
	require.NoError(t, err)
	return a, key
}

func recipient(t *testing.T) solana.PublicKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestConfig(t *testing.T) {
	a, key := newTestAdapter(t, newFakeRPC())
	cfg := a.Config()

	assert.Equal(t, "lamports", cfg.Base.Unit)
	assert.Equal(t, "1000000000", cfg.Base.Atomic.String())
	assert.False(t, cfg.IsSlow)
	assert.False(t, cfg.NeedsFee)
	assert.Equal(t, currency.SignatureED25519, cfg.SignatureType)
	assert.Equal(t, key.PublicKey().String(), a.Address())
}

func TestSignVerifyOwner(t *testing.T) {
	a, key := newTestAdapter(t, newFakeRPC())
	ctx := context.Background()

	sig, err := a.Sign(ctx, []byte("data"))
	require.NoError(t, err)
	owner, err := a.Owner(ctx)
	require.NoError(t, err)
	assert.Len(t, owner, 32)
	assert.True(t, a.Verify(owner, []byte("data"), sig))
	assert.False(t, a.Verify(owner, []byte("other"), sig))

	addr, err := a.OwnerToAddress(owner)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), addr)

	_, err = a.OwnerToAddress([]byte{1, 2})
	assert.Error(t, err)
}

func TestCreateAndSendTx(t *testing.T) {
	client := newFakeRPC()
	a, key := newTestAdapter(t, client)
	ctx := context.Background()
	to := recipient(t)

	transfer, err := a.CreateTx(ctx, decimal.NewFromInt(1_000_000), to.String(), nil)
	require.NoError(t, err)

	tx, err := solana.TransactionFromBytes(transfer.Tx)
	require.NoError(t, err)
	require.NoError(t, tx.VerifySignatures())
	assert.Equal(t, key.PublicKey(), tx.Message.AccountKeys[0])

	id, err := a.SendTx(ctx, transfer.Tx)
	require.NoError(t, err)
	assert.Equal(t, transfer.ID, id)
	assert.Len(t, client.sent, 1)

	_, err = a.CreateTx(ctx, decimal.RequireFromString("1.5"), to.String(), nil)
	assert.Error(t, err)
}

func TestGetFee(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeRPC())
	fee, err := a.GetFee(context.Background(), decimal.NewFromInt(10), recipient(t).String())
	require.NoError(t, err)
	assert.Equal(t, "5000", fee.String())
}

func TestGetTx(t *testing.T) {
	client := newFakeRPC()
	a, key := newTestAdapter(t, client)
	ctx := context.Background()
	to := recipient(t)

	transfer, err := a.CreateTx(ctx, decimal.NewFromInt(700), to.String(), nil)
	require.NoError(t, err)
	sig := solana.MustSignatureFromBase58(transfer.ID)

	_, err = a.GetTx(ctx, transfer.ID)
	var nf *currency.NotFoundError
	require.ErrorAs(t, err, &nf)

	two := uint64(2)
	client.statuses[sig] = &rpc.SignatureStatusesResult{Confirmations: &two, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
	tx, err := a.GetTx(ctx, transfer.ID)
	require.NoError(t, err)
	assert.True(t, tx.Pending)
	assert.False(t, tx.Confirmed)

	var res rpc.GetTransactionResult
	raw := fmt.Sprintf(`{"slot":1,"transaction":[%q,"base64"],"meta":{"err":null,"fee":5000,"preBalances":[5000000,100],"postBalances":[4994300,800]}}`,
		base64.StdEncoding.EncodeToString(transfer.Tx))
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	client.txs[sig] = &res
	client.statuses[sig] = &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}

	tx, err = a.GetTx(ctx, transfer.ID)
	require.NoError(t, err)
	assert.True(t, tx.Confirmed)
	assert.False(t, tx.Pending)
	assert.Equal(t, key.PublicKey().String(), tx.From)
	assert.Equal(t, to.String(), tx.To)
	assert.Equal(t, "700", tx.Amount.String())
}

func TestDelegatedSigner(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := NewWithRPC(currency.Options{Credential: currency.Credential{
		SignFunc:      func(_ context.Context, msg []byte) ([]byte, error) { return ed25519.Sign(priv, msg), nil },
		PublicKeyFunc: func(context.Context) ([]byte, error) { return pub, nil },
	}}, newFakeRPC(), nil)
	require.NoError(t, err)
	assert.Empty(t, a.Address())

	require.NoError(t, a.Ready(ctx))
	assert.Equal(t, solana.PublicKeyFromBytes(pub).String(), a.Address())

	transfer, err := a.CreateTx(ctx, decimal.NewFromInt(1), recipient(t).String(), nil)
	require.NoError(t, err)
	tx, err := solana.TransactionFromBytes(transfer.Tx)
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySignatures())
}

func TestParseAddress(t *testing.T) {
	_, err := ParseAddress("0OIl")
	assert.Error(t, err)

	to := recipient(t)
	got, err := ParseAddress(to.String())
	require.NoError(t, err)
	assert.Equal(t, to, got)
}
