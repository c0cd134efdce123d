// Package client is the entry point of the library: it selects a chain
// adapter by name and exposes funding, withdrawal, price and upload calls
// against one bundler node.
package client

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/chains/arweave"
	"github.com/chinmay1088/bundlr-go/chains/bitcoin"
	"github.com/chinmay1088/bundlr-go/chains/ethereum"
	"github.com/chinmay1088/bundlr-go/chains/solana"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/dataitem"
	"github.com/chinmay1088/bundlr-go/funding"
	"github.com/chinmay1088/bundlr-go/logger"
	"github.com/chinmay1088/bundlr-go/metrics"
	"github.com/chinmay1088/bundlr-go/upload"
)

const DefaultURL = "https://node1.bundlr.network"

var validate = validator.New()

// Options configure a Bundlr client.
type Options struct {
	URL      string `validate:"required,url"`
	Currency string `validate:"required_without=Adapter"`

	Credential currency.Credential `validate:"-"`

	ProviderURL     string `validate:"omitempty,url"`
	ContractAddress string `validate:"omitempty,eth_addr"`
	Precision       int32  `validate:"gte=0"`
	Extra           map[string]any

	Timeout time.Duration `validate:"gte=0"`
	// APIOptions are applied to the bundler client and the REST chain
	// providers after Timeout.
	APIOptions []api.Option

	// Adapter replaces adapter selection, for chains this package does not
	// know about.
	Adapter currency.Currency `validate:"-"`

	UtilsOptions []funding.UtilsOption
	Logger       logger.Logger    `validate:"-"`
	Metrics      metrics.Recorder `validate:"-"`
}

// Bundlr is a client bound to one bundler node and one currency.
type Bundlr struct {
	api      *api.Client
	currency currency.Currency
	utils    *funding.Utils
	funder   *funding.Funder
	uploader *upload.Uploader
	log      logger.Logger

	readyMu sync.Mutex
	ready   bool
}

// New validates opts and builds the adapter for opts.Currency.
func New(opts Options) (*Bundlr, error) {
	if err := validate.Struct(&opts); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	log := logger.OrNoop(opts.Logger)

	apiOpts := []api.Option{api.WithLogger(log)}
	if opts.Timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(opts.Timeout))
	}
	apiOpts = append(apiOpts, opts.APIOptions...)

	cur := opts.Adapter
	if cur == nil {
		var err error
		cur, err = NewCurrency(currency.Options{
			Name:            opts.Currency,
			Credential:      opts.Credential,
			ProviderURL:     opts.ProviderURL,
			ContractAddress: opts.ContractAddress,
			Precision:       opts.Precision,
			Extra:           opts.Extra,
		}, log, apiOpts...)
		if err != nil {
			return nil, err
		}
	}

	bundler := api.NewClient(opts.URL, apiOpts...)
	utils := funding.NewUtils(bundler, cur, log, opts.UtilsOptions...)

	return &Bundlr{
		api:      bundler,
		currency: cur,
		utils:    utils,
		funder:   funding.NewFunder(utils, log, opts.Metrics),
		uploader: upload.NewUploader(bundler, cur, log, opts.Metrics),
		log:      log,
	}, nil
}

// NewCurrency builds the adapter registered under opts.Name.
func NewCurrency(opts currency.Options, log logger.Logger, apiOpts ...api.Option) (currency.Currency, error) {
	switch opts.Name {
	case arweave.Name:
		return arweave.New(opts, log, apiOpts...)
	case solana.Name:
		return solana.New(opts, log)
	case bitcoin.Name:
		return bitcoin.New(opts, log, apiOpts...)
	}
	if _, ok := ethereum.Lookup(opts.Name); ok {
		return ethereum.New(opts, log)
	}
	return nil, &currency.UnsupportedCurrencyError{Currency: opts.Name}
}

// Currencies lists the names NewCurrency accepts.
func Currencies() []string {
	names := []string{arweave.Name, bitcoin.Name, solana.Name}
	names = append(names, slices.Collect(maps.Keys(ethereum.Networks))...)
	slices.Sort(names)
	return names
}

// Ready completes any asynchronous adapter setup. Address is only reliable
// after Ready has returned nil. A failed Ready may be retried.
func (b *Bundlr) Ready(ctx context.Context) error {
	b.readyMu.Lock()
	defer b.readyMu.Unlock()
	if b.ready {
		return nil
	}
	if initializer, ok := b.currency.(currency.Initializer); ok {
		if err := initializer.Ready(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", b.currency.Config().Name, err)
		}
	}
	b.ready = true
	b.log.Debug("client ready", map[string]any{"currency": b.currency.Config().Name, "address": b.currency.Address()})
	return nil
}

func (b *Bundlr) Address() string { return b.currency.Address() }
func (b *Bundlr) Currency() currency.Currency { return b.currency }
func (b *Bundlr) API() *api.Client { return b.api }
func (b *Bundlr) Utils() *funding.Utils { return b.utils }
func (b *Bundlr) Funder() *funding.Funder { return b.funder }
func (b *Bundlr) Uploader() *upload.Uploader { return b.uploader }
func (b *Bundlr) UnitConverter(a decimal.Decimal) decimal.Decimal { return b.utils.UnitConverter(a) }

// GetLoadedBalance returns the bundler balance of this client's address.
func (b *Bundlr) GetLoadedBalance(ctx context.Context) (decimal.Decimal, error) {
	return b.utils.GetBalance(ctx, b.Address())
}

// GetBalance returns the bundler balance of address.
func (b *Bundlr) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return b.utils.GetBalance(ctx, address)
}

// GetPrice returns the atomic cost of uploading size bytes.
func (b *Bundlr) GetPrice(ctx context.Context, size int64) (decimal.Decimal, error) {
	return b.utils.GetPrice(ctx, b.currency.Config().Name, size)
}

// Fund sends amount atomic units to the bundler. See funding.Funder.Fund.
func (b *Bundlr) Fund(ctx context.Context, amount decimal.Decimal, multiplier float64) (*funding.FundResponse, error) {
	return b.funder.Fund(ctx, amount, multiplier)
}

func (b *Bundlr) SubmitFundTransaction(ctx context.Context, txID string) error {
	return b.funder.SubmitFundTransaction(ctx, txID)
}

func (b *Bundlr) Withdraw(ctx context.Context, amount decimal.Decimal) (*funding.WithdrawResponse, error) {
	return b.funder.Withdraw(ctx, amount)
}

func (b *Bundlr) Upload(ctx context.Context, data []byte, opts dataitem.Options) (*upload.UploadResponse, error) {
	return b.uploader.Upload(ctx, data, opts)
}

func (b *Bundlr) UploadFile(ctx context.Context, path string, opts dataitem.Options) (*upload.UploadResponse, error) {
	return b.uploader.UploadFile(ctx, path, opts)
}
