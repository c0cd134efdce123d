package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/client"
	"github.com/chinmay1088/bundlr-go/crypto"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/logger"
	"github.com/chinmay1088/bundlr-go/metrics"
	"github.com/chinmay1088/bundlr-go/wallet"
)

var (
	metricsAddr string
	quiet       bool
)

// session is everything a command needs to talk to the bundler.
type session struct {
	bundlr *client.Bundlr
	log    logger.Logger
	close  func()
}

func newLogger() (logger.Logger, func(), error) {
	if cfg.LogJSON {
		z, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return z, func() { _ = z.Sync() }, nil
	}
	return logger.NewLogrusLogger(os.Stderr, cfg.LogLevel), func() {}, nil
}

func newRecorder(log logger.Logger) (metrics.Recorder, func(), error) {
	if metricsAddr == "" {
		return nil, func() {}, nil
	}
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", map[string]any{"error": err.Error()})
		}
	}()
	return rec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// readPassword takes BUNDLR_PASSWORD when set, otherwise prompts.
func readPassword(prompt string) (string, error) {
	if pw, ok := os.LookupEnv("BUNDLR_PASSWORD"); ok {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// walletPath resolves --wallet, falling back to the keystore entry for the
// currency.
func walletPath() (string, error) {
	if cfg.Wallet != "" {
		return cfg.Wallet, nil
	}
	store := wallet.Store{Dir: cfg.Home}
	if store.Has(cfg.Currency) {
		return store.Path(cfg.Currency), nil
	}
	return "", fmt.Errorf("no wallet given. Use --wallet or 'bundlr keystore import %s <file>'", cfg.Currency)
}

func loadCredential() (currency.Credential, error) {
	path, err := walletPath()
	if err != nil {
		return currency.Credential{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return currency.Credential{}, fmt.Errorf("failed to read wallet: %w", err)
	}
	var password string
	if crypto.IsVault(data) {
		if password, err = readPassword("Enter keystore password: "); err != nil {
			return currency.Credential{}, err
		}
	}
	return wallet.CredentialFromBytes(cfg.Currency, data, password)
}

// newSession builds a ready client. Commands that only query the bundler
// pass needWallet=false and get a client with a throwaway key where the
// currency allows it.
func newSession(ctx context.Context, needWallet bool) (*session, error) {
	cfg.Currency = strings.ToLower(cfg.Currency)
	if cfg.Currency == "" {
		return nil, errors.New("no currency given. Use --currency or BUNDLR_CURRENCY")
	}
	log, syncLog, err := newLogger()
	if err != nil {
		return nil, err
	}
	rec, stopMetrics, err := newRecorder(log)
	if err != nil {
		return nil, err
	}

	opts := client.Options{
		URL:             cfg.URL,
		Currency:        cfg.Currency,
		ProviderURL:     cfg.ProviderURL,
		ContractAddress: cfg.ContractAddress,
		Timeout:         cfg.Timeout,
		Logger:          log,
		Metrics:         rec,
		APIOptions: []api.Option{
			api.WithRetries(cfg.Retries),
			api.WithRateLimit(cfg.RateLimit, 1),
			api.WithHeader("User-Agent", "bundlr-go/"+version),
		},
	}
	if needWallet || cfg.Wallet != "" {
		if opts.Credential, err = loadCredential(); err != nil {
			return nil, err
		}
	} else {
		opts.Adapter = queryOnly{name: cfg.Currency}
	}

	b, err := client.New(opts)
	if err != nil {
		return nil, err
	}
	if err := b.Ready(ctx); err != nil {
		return nil, err
	}
	return &session{
		bundlr: b,
		log:    log,
		close: func() {
			stopMetrics()
			syncLog()
		},
	}, nil
}

// queryOnly stands in for an adapter on commands that never sign, so price
// lookups work without a wallet.
type queryOnly struct {
	currency.Currency
	name string
}

func (q queryOnly) Config() currency.Config {
	return currency.Config{Name: q.name, Base: baseFor(q.name)}
}

func (q queryOnly) Address() string { return "" }

// baseFor returns the unit table of a known currency.
func baseFor(name string) currency.Base {
	switch name {
	case "arweave":
		return currency.NewBase("winston", 12)
	case "solana":
		return currency.NewBase("lamports", 9)
	case "bitcoin":
		return currency.NewBase("satoshi", 8)
	}
	return currency.NewBase("wei", 18)
}

// parseAmount reads an atomic amount, or whole coins when base is set.
func parseAmount(s string, base bool, c currency.Config) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if base {
		d = c.ToAtomic(d, currency.RoundDown)
	}
	if !d.IsPositive() || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("amount must be a positive whole number of %s, got %s", c.Base.Unit, d)
	}
	return d, nil
}

func formatAmount(c currency.Config, atomic decimal.Decimal) string {
	return fmt.Sprintf("%s %s (%s %s)", atomic.String(), c.Base.Unit, c.ToBase(atomic).String(), strings.ToUpper(c.Name))
}

// confirm asks before money moves unless --yes was given.
func confirm(cmd *cobra.Command, what string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	fmt.Printf("🚨 %s. Real funds will be sent.\n", what)
	fmt.Printf("Press y to confirm or n to stop (y/n): ")

	var response string
	fmt.Scanln(&response)

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// bundlerHint explains common bundler rejections, or returns "".
func bundlerHint(err error) string {
	switch api.StatusOf(err) {
	case http.StatusPaymentRequired:
		return fmt.Sprintf("balance too low. Fund it with 'bundlr fund <amount> -c %s'", cfg.Currency)
	case http.StatusNotFound:
		return fmt.Sprintf("the bundler at %s does not know this account or transaction", cfg.URL)
	case http.StatusBadRequest:
		return "the bundler rejected the request. Check the amount and your balance"
	case http.StatusTooManyRequests:
		return "the bundler is rate limiting. Retry later or lower BUNDLR_RATE_LIMIT"
	}
	return ""
}

// explain prints a hint for err when there is one and returns err.
func explain(err error) error {
	if hint := bundlerHint(err); hint != "" {
		fmt.Printf("%s %s\n", warn("💡"), hint)
	}
	return err
}

func printf(format string, args ...any) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

var (
	success = color.New(color.FgGreen).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
	accent  = color.New(color.FgCyan).SprintFunc()
)
