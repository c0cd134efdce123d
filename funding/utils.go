// Package funding combines a chain adapter with the bundler HTTP API: balance
// and price queries, the confirmation poll, funding and withdrawal.
package funding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/logger"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollAttempts = 15
)

// Utils holds the bundler queries shared by the funder and the uploader.
type Utils struct {
	api      *api.Client
	currency currency.Currency
	log      logger.Logger

	pollInterval time.Duration
	pollAttempts int
	sleep        func(ctx context.Context, d time.Duration) error
}

// UtilsOption customizes Utils.
type UtilsOption func(*Utils)

// WithPollInterval changes the wait between confirmation checks.
func WithPollInterval(d time.Duration) UtilsOption {
	return func(u *Utils) {
		if d > 0 {
			u.pollInterval = d
		}
	}
}

// WithPollAttempts changes how many times the chain is checked.
func WithPollAttempts(n int) UtilsOption {
	return func(u *Utils) {
		if n > 0 {
			u.pollAttempts = n
		}
	}
}

// WithSleep replaces the function used to wait between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) UtilsOption {
	return func(u *Utils) {
		if sleep != nil {
			u.sleep = sleep
		}
	}
}

func NewUtils(client *api.Client, cur currency.Currency, log logger.Logger, opts ...UtilsOption) *Utils {
	u := &Utils{
		api:          client,
		currency:     cur,
		log:          logger.OrNoop(log),
		pollInterval: DefaultPollInterval,
		pollAttempts: DefaultPollAttempts,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// API returns the bundler client.
func (u *Utils) API() *api.Client { return u.api }

// Currency returns the adapter the queries are scoped to.
func (u *Utils) Currency() currency.Currency { return u.currency }

func (u *Utils) name() string { return u.currency.Config().Name }

// GetNonce fetches the withdrawal nonce for the adapter's address.
func (u *Utils) GetNonce(ctx context.Context) (uint64, error) {
	resp, err := u.api.Get(ctx, "/account/withdrawals/"+u.name(), url.Values{"address": {u.currency.Address()}})
	if err != nil {
		return 0, fmt.Errorf("failed to get withdrawal nonce: %w", err)
	}
	if err := api.CheckAndThrow(resp, "Getting withdrawal nonce"); err != nil {
		return 0, err
	}
	nonce, err := strconv.ParseUint(strings.Trim(resp.Text(), `"`), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse nonce %q: %w", resp.Text(), err)
	}
	return nonce, nil
}

// GetBalance returns the bundler-side balance of address in atomic units.
func (u *Utils) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	resp, err := u.api.Get(ctx, "/account/balance/"+u.name(), url.Values{"address": {address}})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	if err := api.CheckAndThrow(resp, "Getting balance"); err != nil {
		return decimal.Zero, err
	}
	var body struct {
		Balance json.RawMessage `json:"balance"`
	}
	if err := resp.JSON(&body); err != nil {
		return decimal.Zero, err
	}
	if len(body.Balance) == 0 {
		return decimal.Zero, fmt.Errorf("balance missing from response")
	}
	return currency.ParseAtomic(string(body.Balance))
}

// GetBundlerAddress returns the bundler's receiving address for cur.
func (u *Utils) GetBundlerAddress(ctx context.Context, cur string) (string, error) {
	resp, err := u.api.Get(ctx, "/info", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get bundler info: %w", err)
	}
	if err := api.CheckAndThrow(resp, "getting bundler address"); err != nil {
		return "", err
	}
	var info struct {
		Addresses map[string]string `json:"addresses"`
	}
	if err := resp.JSON(&info); err != nil {
		return "", err
	}
	addr, ok := info.Addresses[cur]
	if !ok || addr == "" {
		return "", &currency.UnsupportedCurrencyError{Currency: cur}
	}
	return addr, nil
}

// GetPrice returns the atomic cost of storing size bytes paid in cur.
func (u *Utils) GetPrice(ctx context.Context, cur string, size int64) (decimal.Decimal, error) {
	if size < 0 {
		return decimal.Zero, fmt.Errorf("invalid byte count %d", size)
	}
	resp, err := u.api.Get(ctx, fmt.Sprintf("/price/%s/%d", cur, size), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price: %w", err)
	}
	if err := api.CheckAndThrow(resp, "getting price"); err != nil {
		return decimal.Zero, err
	}
	return currency.ParseAtomic(resp.Text())
}

// ConfirmationPoll waits for txID to confirm on slow chains. It gives up
// with a warning, never an error, once the attempts run out. Fast chains
// return straight away.
func (u *Utils) ConfirmationPoll(ctx context.Context, txID string) {
	cfg := u.currency.Config()
	if !cfg.IsSlow {
		return
	}

	for attempt := 1; attempt <= u.pollAttempts; attempt++ {
		if err := u.sleep(ctx, u.pollInterval); err != nil {
			u.log.Warn("confirmation poll interrupted", map[string]any{"currency": cfg.Name, "tx_id": txID, "error": err.Error()})
			return
		}
		tx, err := u.currency.GetTx(ctx, txID)
		if err != nil {
			u.log.Debug("confirmation check failed", map[string]any{"currency": cfg.Name, "tx_id": txID, "attempt": attempt, "error": err.Error()})
			continue
		}
		if tx.Confirmed {
			u.log.Debug("transaction confirmed", map[string]any{"currency": cfg.Name, "tx_id": txID, "attempt": attempt})
			return
		}
	}

	u.log.Warn("transaction not confirmed in time, continuing", map[string]any{
		"currency": cfg.Name,
		"tx_id":    txID,
		"waited":   (time.Duration(u.pollAttempts) * u.pollInterval).String(),
	})
}

// UnitConverter turns atomic units into whole coins.
func (u *Utils) UnitConverter(atomic decimal.Decimal) decimal.Decimal {
	return u.currency.Config().ToBase(atomic)
}
