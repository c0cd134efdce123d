package funding

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/deephash"
	"github.com/chinmay1088/bundlr-go/logger"
	"github.com/chinmay1088/bundlr-go/metrics"
)

const tracerName = "github.com/chinmay1088/bundlr-go/funding"

// FundResponse describes a funding transfer the bundler has been told about.
type FundResponse struct {
	ID       string          `json:"id"`
	Quantity decimal.Decimal `json:"quantity"`
	Reward   decimal.Decimal `json:"reward"`
	Target   string          `json:"target"`
}

// NotificationError means the funding transfer was broadcast but the bundler
// was not told about it. Retry with SubmitFundTransaction(TxID).
type NotificationError struct {
	TxID string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to post funding tx %s to the bundler: %v", e.TxID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Funder pays the bundler and withdraws from it.
type Funder struct {
	utils   *Utils
	log     logger.Logger
	metrics metrics.Recorder
	tracer  trace.Tracer
}

func NewFunder(utils *Utils, log logger.Logger, rec metrics.Recorder) *Funder {
	return &Funder{
		utils:   utils,
		log:     logger.OrNoop(log),
		metrics: metrics.OrNoop(rec),
		tracer:  otel.Tracer(tracerName),
	}
}

func (f *Funder) labels() map[string]string {
	return map[string]string{"currency": f.utils.name()}
}

func (f *Funder) fail(span trace.Span, name string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	f.metrics.IncCounter(name+"_failed", f.labels())
	return err
}

// Fund sends amount atomic units to the bundler and registers the transfer.
// The network fee quote is scaled by multiplier (1 when <= 0).
//
// Cancelling ctx after the broadcast leaves the transfer live on chain; the
// returned NotificationError (or the logged tx id) is enough to resume.
func (f *Funder) Fund(ctx context.Context, amount decimal.Decimal, multiplier float64) (*FundResponse, error) {
	cfg := f.utils.currency.Config()
	ctx, span := f.tracer.Start(ctx, "funding.Fund", trace.WithAttributes(
		attribute.String("currency", cfg.Name),
		attribute.String("amount", amount.String()),
	))
	defer span.End()
	defer metrics.Since(f.metrics, "fund", time.Now(), f.labels())

	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return nil, f.fail(span, "fund", fmt.Errorf("amount must be a positive integer, got %s", amount))
	}
	if multiplier <= 0 {
		multiplier = 1
	}

	to, err := f.utils.GetBundlerAddress(ctx, cfg.Name)
	if err != nil {
		return nil, f.fail(span, "fund", err)
	}

	var fee *decimal.Decimal
	reward := decimal.Zero
	if cfg.NeedsFee {
		quote, err := f.utils.currency.GetFee(ctx, amount, to)
		if err != nil {
			return nil, f.fail(span, "fund", fmt.Errorf("failed to get fee: %w", err))
		}
		reward = currency.CeilFee(quote.Mul(decimal.NewFromFloat(multiplier)))
		fee = &reward
	}

	transfer, err := f.utils.currency.CreateTx(ctx, amount, to, fee)
	if err != nil {
		return nil, f.fail(span, "fund", fmt.Errorf("failed to create transaction: %w", err))
	}

	sentID, err := f.utils.currency.SendTx(ctx, transfer.Tx)
	if err != nil {
		return nil, f.fail(span, "fund", fmt.Errorf("failed to send transaction: %w", err))
	}
	id := transfer.ID
	if id == "" {
		id = sentID
	}
	if id == "" {
		return nil, f.fail(span, "fund", fmt.Errorf("broadcast returned no transaction id"))
	}
	span.SetAttributes(attribute.String("tx_id", id))
	f.log.Info("funding transaction sent", map[string]any{"currency": cfg.Name, "tx_id": id, "amount": amount.String(), "to": to})

	f.utils.ConfirmationPoll(ctx, id)

	if err := f.SubmitFundTransaction(ctx, id); err != nil {
		f.log.Error("bundler not notified of funding transaction", map[string]any{"currency": cfg.Name, "tx_id": id, "error": err.Error()})
		return nil, f.fail(span, "fund", &NotificationError{TxID: id, Err: err})
	}

	f.metrics.IncCounter("fund", f.labels())
	return &FundResponse{ID: id, Quantity: amount, Reward: reward, Target: to}, nil
}

// SubmitFundTransaction tells the bundler about a funding transfer. 202
// means the bundler is still waiting on the chain.
func (f *Funder) SubmitFundTransaction(ctx context.Context, txID string) error {
	resp, err := f.utils.api.Post(ctx, "/account/balance/"+f.utils.name(), map[string]string{"tx_id": txID})
	if err != nil {
		return fmt.Errorf("failed to post funding transaction: %w", err)
	}
	return api.CheckAndThrow(resp, "Posting transaction information to the bundler", 202)
}

// WithdrawResponse is the bundler's answer to a withdrawal request.
type WithdrawResponse struct {
	TxID      string          `json:"tx_id"`
	Requested decimal.Decimal `json:"requested"`
	Fee       decimal.Decimal `json:"fee"`
	Final     decimal.Decimal `json:"final"`
}

// jsonBuffer marshals like a Node.js Buffer.
type jsonBuffer []byte

func (b jsonBuffer) MarshalJSON() ([]byte, error) {
	data := make([]int, len(b))
	for i, v := range b {
		data[i] = int(v)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Data []int  `json:"data"`
	}{"Buffer", data})
}

type withdrawRequest struct {
	PublicKey string     `json:"publicKey"`
	Currency  string     `json:"currency"`
	Amount    string     `json:"amount"`
	Nonce     uint64     `json:"nonce"`
	Signature jsonBuffer `json:"signature"`
	SigType   int        `json:"sigType"`
}

// WithdrawalHash is the message signed for a withdrawal request.
func WithdrawalHash(cur string, amount decimal.Decimal, nonce uint64) []byte {
	return deephash.Hash(deephash.List{
		deephash.String(cur),
		deephash.String(amount.String()),
		deephash.String(strconv.FormatUint(nonce, 10)),
	})
}

// Withdraw asks the bundler to return amount atomic units to the adapter's
// address.
func (f *Funder) Withdraw(ctx context.Context, amount decimal.Decimal) (*WithdrawResponse, error) {
	cfg := f.utils.currency.Config()
	ctx, span := f.tracer.Start(ctx, "funding.Withdraw", trace.WithAttributes(
		attribute.String("currency", cfg.Name),
		attribute.String("amount", amount.String()),
	))
	defer span.End()
	defer metrics.Since(f.metrics, "withdraw", time.Now(), f.labels())

	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return nil, f.fail(span, "withdraw", fmt.Errorf("amount must be a positive integer, got %s", amount))
	}
	if cfg.SignatureType == currency.SignatureNone {
		return nil, f.fail(span, "withdraw", &currency.SigningError{Currency: cfg.Name, Err: fmt.Errorf("withdrawals are not supported")})
	}

	// a delegated signer's address is unknown until its key is fetched, and
	// the nonce is looked up by address
	if initializer, ok := f.utils.currency.(currency.Initializer); ok {
		if err := initializer.Ready(ctx); err != nil {
			return nil, f.fail(span, "withdraw", err)
		}
	}
	owner, err := f.utils.currency.Owner(ctx)
	if err != nil {
		return nil, f.fail(span, "withdraw", err)
	}

	nonce, err := f.utils.GetNonce(ctx)
	if err != nil {
		return nil, f.fail(span, "withdraw", err)
	}

	msg := WithdrawalHash(cfg.Name, amount, nonce)
	sig, err := f.utils.currency.Sign(ctx, msg)
	if err != nil {
		return nil, f.fail(span, "withdraw", err)
	}
	if !f.utils.currency.Verify(owner, msg, sig) {
		return nil, f.fail(span, "withdraw", &currency.SigningError{Currency: cfg.Name, Err: fmt.Errorf("withdrawal signature failed local verification")})
	}
	pub, err := f.utils.currency.GetPublicKey(ctx)
	if err != nil {
		return nil, f.fail(span, "withdraw", err)
	}

	resp, err := f.utils.api.Post(ctx, "/account/withdraw", withdrawRequest{
		PublicKey: pub,
		Currency:  cfg.Name,
		Amount:    amount.String(),
		Nonce:     nonce,
		Signature: sig,
		SigType:   cfg.SignatureType,
	})
	if err != nil {
		return nil, f.fail(span, "withdraw", fmt.Errorf("failed to post withdrawal: %w", err))
	}
	if err := api.CheckAndThrow(resp, "Withdrawing balance"); err != nil {
		return nil, f.fail(span, "withdraw", err)
	}

	out := &WithdrawResponse{Requested: amount}
	if len(resp.Body) > 0 {
		if err := resp.JSON(out); err != nil {
			return nil, f.fail(span, "withdraw", err)
		}
	}
	f.metrics.IncCounter("withdraw", f.labels())
	f.log.Info("withdrawal requested", map[string]any{"currency": cfg.Name, "amount": amount.String(), "tx_id": out.TxID})
	return out, nil
}
