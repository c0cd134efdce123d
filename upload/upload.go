// Package upload signs data items with a chain adapter and posts them to the
// bundler.
package upload

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/chinmay1088/bundlr-go/api"
	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/dataitem"
	"github.com/chinmay1088/bundlr-go/logger"
	"github.com/chinmay1088/bundlr-go/metrics"
)

// ErrInsufficientFunds is returned when the bundler balance cannot pay for an
// upload.
var ErrInsufficientFunds = errors.New("not enough funds to send data")

// UploadResponse identifies an accepted data item.
type UploadResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// AlreadyReceived is set when the bundler had the item before this call.
	AlreadyReceived bool `json:"-"`
}

type Uploader struct {
	api      *api.Client
	currency currency.Currency
	log      logger.Logger
	metrics  metrics.Recorder
}

func NewUploader(client *api.Client, cur currency.Currency, log logger.Logger, rec metrics.Recorder) *Uploader {
	return &Uploader{
		api:      client,
		currency: cur,
		log:      logger.OrNoop(log),
		metrics:  metrics.OrNoop(rec),
	}
}

// CreateItem builds and signs a data item without sending it.
func (u *Uploader) CreateItem(ctx context.Context, data []byte, opts dataitem.Options) (*dataitem.Item, error) {
	cfg := u.currency.Config()
	if cfg.SignatureType == currency.SignatureNone {
		return nil, &currency.SigningError{Currency: cfg.Name, Err: fmt.Errorf("%s cannot sign data items", cfg.Name)}
	}
	item, err := dataitem.New(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create data item: %w", err)
	}
	if err := item.Sign(ctx, u.currency); err != nil {
		return nil, err
	}
	return item, nil
}

// Upload signs data and posts it to /tx/{currency}.
func (u *Uploader) Upload(ctx context.Context, data []byte, opts dataitem.Options) (*UploadResponse, error) {
	item, err := u.CreateItem(ctx, data, opts)
	if err != nil {
		return nil, err
	}
	return u.Send(ctx, item)
}

// Send posts an already signed item.
func (u *Uploader) Send(ctx context.Context, item *dataitem.Item) (*UploadResponse, error) {
	name := u.currency.Config().Name
	labels := map[string]string{"currency": name}
	defer metrics.Since(u.metrics, "upload", time.Now(), labels)

	raw, err := item.Bytes()
	if err != nil {
		return nil, err
	}
	resp, err := u.api.PostBytes(ctx, "/tx/"+name, "application/octet-stream", raw)
	if err != nil {
		u.metrics.IncCounter("upload_failed", labels)
		return nil, fmt.Errorf("failed to post data item: %w", err)
	}

	out := &UploadResponse{ID: item.ID()}
	switch resp.StatusCode {
	case http.StatusOK:
		if len(resp.Body) > 0 {
			if err := resp.JSON(out); err != nil {
				return nil, err
			}
		}
	case http.StatusCreated:
		out.AlreadyReceived = true
		u.log.Info("data item already received", map[string]any{"currency": name, "id": out.ID})
	case http.StatusPaymentRequired:
		u.metrics.IncCounter("upload_failed", labels)
		return nil, ErrInsufficientFunds
	default:
		u.metrics.IncCounter("upload_failed", labels)
		return nil, api.CheckAndThrow(resp, "Uploading data item")
	}

	u.metrics.IncCounter("upload", labels)
	u.log.Debug("data item uploaded", map[string]any{"currency": name, "id": out.ID, "bytes": len(raw)})
	return out, nil
}

// ContentType guesses the MIME type of a file, by extension first and then by
// sniffing data.
func ContentType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}

// UploadFile uploads the file at path with a Content-Type tag, unless opts
// already carries one.
func (u *Uploader) UploadFile(ctx context.Context, path string, opts dataitem.Options) (*UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return u.Upload(ctx, data, WithContentType(opts, ContentType(path, data)))
}

// WithContentType returns opts with a Content-Type tag appended when none is
// present.
func WithContentType(opts dataitem.Options, contentType string) dataitem.Options {
	for _, t := range opts.Tags {
		if http.CanonicalHeaderKey(t.Name) == "Content-Type" {
			return opts
		}
	}
	tags := make([]dataitem.Tag, 0, len(opts.Tags)+1)
	tags = append(tags, opts.Tags...)
	opts.Tags = append(tags, dataitem.Tag{Name: "Content-Type", Value: contentType})
	return opts
}
