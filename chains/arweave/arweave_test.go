package arweave

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func jwkFixture(t *testing.T) []byte {
	keyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	data, err := MarshalJWK(testKey)
	require.NoError(t, err)
	return data
}

func newTestAdapter(t *testing.T, gatewayURL string) *Adapter {
	a, err := New(currency.Options{
		Credential:  currency.Credential{PrivateKey: jwkFixture(t)},
		ProviderURL: gatewayURL,
	}, nil, api.WithRetries(0))
	require.NoError(t, err)
	return a
}

func TestJWKRoundTrip(t *testing.T) {
	data := jwkFixture(t)
	key, err := ParseJWK(data)
	require.NoError(t, err)
	assert.Equal(t, 0, key.N.Cmp(testKey.N))
	assert.Equal(t, 0, key.D.Cmp(testKey.D))

	_, err = ParseJWK([]byte(`{"kty":"EC"}`))
	assert.Error(t, err)
	_, err = ParseJWK([]byte(`not json`))
	assert.Error(t, err)
}

func TestConfigAndAddress(t *testing.T) {
	a := newTestAdapter(t, "http://gateway.invalid")
	cfg := a.Config()

	assert.Equal(t, "arweave", cfg.Name)
	assert.Equal(t, "winston", cfg.Base.Unit)
	assert.Equal(t, "1000000000000", cfg.Base.Atomic.String())
	assert.True(t, cfg.NeedsFee)
	assert.True(t, cfg.IsSlow)
	assert.Equal(t, currency.SignatureArweave, cfg.SignatureType)

	h := sha256.Sum256(testKey.N.Bytes())
	assert.Equal(t, b64(h[:]), a.Address())

	addr, err := a.OwnerToAddress(testKey.N.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a.Address(), addr)

	again, err := a.OwnerToAddress(testKey.N.Bytes())
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestSignVerify(t *testing.T) {
	a := newTestAdapter(t, "http://gateway.invalid")
	ctx := context.Background()

	sig, err := a.Sign(ctx, []byte("message"))
	require.NoError(t, err)

	owner, err := a.Owner(ctx)
	require.NoError(t, err)
	assert.True(t, a.Verify(owner, []byte("message"), sig))
	assert.False(t, a.Verify(owner, []byte("other"), sig))
	assert.False(t, a.Verify(nil, []byte("message"), sig))
}

type gatewayStub struct {
	gateway string
}

func (g gatewayStub) GatewayURL() (string, bool) { return g.gateway, true }

func TestGatewayConfigurerTakesPrecedence(t *testing.T) {
	a, err := New(currency.Options{
		Credential:  currency.Credential{PrivateKey: jwkFixture(t)},
		ProviderURL: "http://configured.invalid",
		Extra:       map[string]any{"gateway": gatewayStub{gateway: "http://wallet.invalid"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://wallet.invalid", a.Config().ProviderURL)
}

func TestGetTx(t *testing.T) {
	owner := testOwner(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tx/pending/status":
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, "Pending")
		case "/tx/missing/status":
			http.NotFound(w, r)
		case "/tx/few/status":
			fmt.Fprint(w, `{"block_height":10,"number_of_confirmations":2}`)
		case "/tx/done/status":
			fmt.Fprint(w, `{"block_height":10,"number_of_confirmations":7}`)
		case "/tx/few", "/tx/done":
			json.NewEncoder(w).Encode(Transaction{Format: 2, Owner: b64(owner), Target: "bundler", Quantity: "5000"})
		case "/tx/broken/status":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ctx := context.Background()

	tx, err := a.GetTx(ctx, "pending")
	require.NoError(t, err)
	assert.True(t, tx.Pending)
	assert.False(t, tx.Confirmed)

	_, err = a.GetTx(ctx, "missing")
	var nf *currency.NotFoundError
	assert.ErrorAs(t, err, &nf)

	tx, err = a.GetTx(ctx, "few")
	require.NoError(t, err)
	assert.False(t, tx.Pending)
	assert.False(t, tx.Confirmed)

	tx, err = a.GetTx(ctx, "done")
	require.NoError(t, err)
	assert.True(t, tx.Confirmed)
	assert.Equal(t, a.Address(), tx.From)
	assert.Equal(t, "bundler", tx.To)
	assert.Equal(t, "5000", tx.Amount.String())

	_, err = a.GetTx(ctx, "broken")
	var cq *currency.ChainQueryError
	require.ErrorAs(t, err, &cq)
	assert.Equal(t, http.StatusInternalServerError, api.StatusOf(err))
}

func testOwner(t *testing.T) []byte {
	jwkFixture(t)
	return testKey.N.Bytes()
}

func TestHeightAndFee(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, `{"network":"arweave.N.1","height":1234567}`)
		case "/price/0/target":
			fmt.Fprint(w, "65595508")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ctx := context.Background()

	h, err := a.GetCurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567), h)

	fee, err := a.GetFee(ctx, decimal.NewFromInt(1), "target")
	require.NoError(t, err)
	assert.Equal(t, "65595508", fee.String())
	assert.True(t, fee.Equal(fee.Ceil()))
}

func TestCreateAndSendTx(t *testing.T) {
	var posted Transaction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/tx_anchor":
			fmt.Fprint(w, b64(make([]byte, 48)))
		case r.URL.Path == "/tx" && r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &posted))
			fmt.Fprint(w, "OK")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ctx := context.Background()
	target := b64(make([]byte, 32))
	fee := decimal.RequireFromString("100.2")

	transfer, err := a.CreateTx(ctx, decimal.NewFromInt(5000), target, &fee)
	require.NoError(t, err)
	require.NotEmpty(t, transfer.ID)

	var tx Transaction
	require.NoError(t, json.Unmarshal(transfer.Tx, &tx))
	assert.Equal(t, "5000", tx.Quantity)
	assert.Equal(t, "101", tx.Reward)
	assert.Equal(t, target, tx.Target)

	msg, err := tx.SignatureData()
	require.NoError(t, err)
	sig, err := unb64(tx.Signature)
	require.NoError(t, err)
	assert.True(t, a.Verify(testKey.N.Bytes(), msg, sig))

	id, err := a.SendTx(ctx, transfer.Tx)
	require.NoError(t, err)
	assert.Equal(t, transfer.ID, id)
	assert.Equal(t, transfer.ID, posted.ID)
}

func TestSendTxDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := New(currency.Options{
		Credential:  currency.Credential{PrivateKey: jwkFixture(t)},
		ProviderURL: srv.URL,
	}, nil)
	require.NoError(t, err)

	_, err = a.SendTx(context.Background(), []byte(`{"format":2,"id":"abc"}`))
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDelegatedSigner(t *testing.T) {
	jwkFixture(t)
	ctx := context.Background()
	owner := testKey.N.Bytes()

	a, err := New(currency.Options{Credential: currency.Credential{
		SignFunc: func(_ context.Context, msg []byte) ([]byte, error) {
			digest := sha256.Sum256(msg)
			return rsa.SignPSS(rand.Reader, testKey, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
		},
		PublicKeyFunc: func(context.Context) ([]byte, error) { return owner, nil },
	}}, nil)
	require.NoError(t, err)
	assert.Empty(t, a.Address())

	require.NoError(t, a.Ready(ctx))
	h := sha256.Sum256(owner)
	assert.Equal(t, b64(h[:]), a.Address())

	sig, err := a.Sign(ctx, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, a.Verify(owner, []byte("payload"), sig))

	_, err = New(currency.Options{}, nil)
	var se *currency.SigningError
	assert.ErrorAs(t, err, &se)
}
