package arweave

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/chinmay1088/bundlr-go/deephash"
)

// Tag is a base64url encoded name/value pair on a transaction.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Transaction is a format 2 Arweave transaction as posted to a gateway.
type Transaction struct {
	Format    int    `json:"format"`
	ID        string `json:"id"`
	LastTx    string `json:"last_tx"`
	Owner     string `json:"owner"`
	Tags      []Tag  `json:"tags"`
	Target    string `json:"target"`
	Quantity  string `json:"quantity"`
	Data      string `json:"data"`
	DataSize  string `json:"data_size"`
	DataRoot  string `json:"data_root"`
	Reward    string `json:"reward"`
	Signature string `json:"signature"`
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// SignatureData returns the deep hash a format 2 transaction is signed over.
func (tx *Transaction) SignatureData() ([]byte, error) {
	if tx.Format != 2 {
		return nil, fmt.Errorf("unsupported transaction format %d", tx.Format)
	}
	fields := map[string]string{"owner": tx.Owner, "target": tx.Target, "last_tx": tx.LastTx, "data_root": tx.DataRoot}
	raw := make(map[string][]byte, len(fields))
	for name, v := range fields {
		b, err := unb64(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		raw[name] = b
	}

	tags := make(deephash.List, 0, len(tx.Tags))
	for _, t := range tx.Tags {
		name, err := unb64(t.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid tag name: %w", err)
		}
		value, err := unb64(t.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid tag value: %w", err)
		}
		tags = append(tags, deephash.List{deephash.Blob(name), deephash.Blob(value)})
	}

	return deephash.Hash(deephash.List{
		deephash.String("2"),
		deephash.Blob(raw["owner"]),
		deephash.Blob(raw["target"]),
		deephash.String(tx.Quantity),
		deephash.String(tx.Reward),
		deephash.Blob(raw["last_tx"]),
		tags,
		deephash.String(tx.DataSize),
		deephash.Blob(raw["data_root"]),
	}), nil
}

// SetSignature stores sig and derives the transaction id from it.
func (tx *Transaction) SetSignature(sig []byte) {
	id := sha256.Sum256(sig)
	tx.Signature = b64(sig)
	tx.ID = b64(id[:])
}
