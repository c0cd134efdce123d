package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/dataitem"
)

func TestParseAmount(t *testing.T) {
	c := currency.Config{Name: "arweave", Base: currency.NewBase("winston", 12)}

	d, err := parseAmount("1000", false, c)
	require.NoError(t, err)
	assert.Equal(t, "1000", d.String())

	d, err = parseAmount("0.5", true, c)
	require.NoError(t, err)
	assert.Equal(t, "500000000000", d.String())

	_, err = parseAmount("0.5", false, c)
	assert.Error(t, err)
	_, err = parseAmount("-1", false, c)
	assert.Error(t, err)
	_, err = parseAmount("lots", false, c)
	assert.Error(t, err)
}

func TestParseTags(t *testing.T) {
	tags, err := parseTags([]string{"App-Name=demo", "Expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, []dataitem.Tag{{Name: "App-Name", Value: "demo"}, {Name: "Expr", Value: "a=b"}}, tags)

	_, err = parseTags([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseTags([]string{"=x"})
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	c := currency.Config{Name: "solana", Base: baseFor("solana")}
	assert.Equal(t, "1500000000 lamports (1.5 SOLANA)", formatAmount(c, decimal.NewFromInt(1500000000)))
}

func TestBundlerHint(t *testing.T) {
	rejected := func(status int) error {
		err := api.CheckAndThrow(&api.Response{StatusCode: status}, "Withdrawing balance")
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	assert.Contains(t, bundlerHint(rejected(http.StatusPaymentRequired)), "bundlr fund")
	assert.Contains(t, bundlerHint(rejected(http.StatusNotFound)), "does not know")
	assert.Contains(t, bundlerHint(rejected(http.StatusBadRequest)), "rejected")
	assert.Empty(t, bundlerHint(rejected(http.StatusInternalServerError)))
	assert.Empty(t, bundlerHint(fmt.Errorf("dial tcp: connection refused")))

	err := rejected(http.StatusPaymentRequired)
	assert.Same(t, err, explain(err))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "bundlr-go v"+version)
}

func TestPriceCommandNeedsNoWallet(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/price/solana/1024", r.URL.Path)
		fmt.Fprint(w, "5000")
	}))
	defer srv.Close()

	prev := cfg
	t.Cleanup(func() { cfg = prev; rootCmd.SetArgs(nil) })
	cfg.Wallet = ""

	rootCmd.SetArgs([]string{"price", "1024", "-c", "solana", "-H", srv.URL, "-q"})
	require.NoError(t, Execute())
	assert.Equal(t, 1, hits)
}
