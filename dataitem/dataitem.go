// Package dataitem builds, signs and parses ANS-104 data items, the signed
// envelope a bundler accepts for uploads.
package dataitem

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/chinmay1088/bundlr-go/currency"
	"github.com/chinmay1088/bundlr-go/deephash"
)

type sigMeta struct {
	sigLen, ownerLen int
}

var sigMetas = map[int]sigMeta{
	currency.SignatureArweave:  {512, 512},
	currency.SignatureED25519:  {64, 32},
	currency.SignatureEthereum: {65, 65},
	currency.SignatureSolana:   {64, 32},
}

// SignatureLengths returns the signature and owner sizes for sigType.
func SignatureLengths(sigType int) (sig, owner int, ok bool) {
	m, ok := sigMetas[sigType]
	return m.sigLen, m.ownerLen, ok
}

// Signer produces data item signatures. Every currency.Currency with a non-zero
// signature type satisfies it.
type Signer interface {
	Config() currency.Config
	Owner(ctx context.Context) ([]byte, error)
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// Options are the optional fields of a data item.
type Options struct {
	// Target is a base64url address the item is addressed to.
	Target string
	// Anchor must be exactly 32 bytes when set.
	Anchor string
	Tags   []Tag
}

// Item is a data item. Signature is nil until Sign is called.
type Item struct {
	SignatureType int
	Signature     []byte
	Owner         []byte
	Target        []byte
	Anchor        []byte
	Tags          []Tag
	Data          []byte
}

// New validates opts and returns an unsigned item.
func New(data []byte, opts Options) (*Item, error) {
	item := &Item{Data: data, Tags: opts.Tags}
	if opts.Target != "" {
		t, err := base64.RawURLEncoding.DecodeString(opts.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid target: %w", err)
		}
		if len(t) != 32 {
			return nil, fmt.Errorf("target must be 32 bytes, got %d", len(t))
		}
		item.Target = t
	}
	if opts.Anchor != "" {
		if len(opts.Anchor) != 32 {
			return nil, fmt.Errorf("anchor must be 32 bytes, got %d", len(opts.Anchor))
		}
		item.Anchor = []byte(opts.Anchor)
	}
	if err := validateTags(opts.Tags); err != nil {
		return nil, err
	}
	return item, nil
}

// SignatureData is the deep hash covered by the item's signature.
func (i *Item) SignatureData() []byte {
	tags := make(deephash.List, 0, len(i.Tags))
	for _, t := range i.Tags {
		tags = append(tags, deephash.List{deephash.String(t.Name), deephash.String(t.Value)})
	}
	return deephash.Hash(deephash.List{
		deephash.String("dataitem"),
		deephash.String("1"),
		deephash.String(strconv.Itoa(i.SignatureType)),
		deephash.Blob(i.Owner),
		deephash.Blob(i.Target),
		deephash.Blob(i.Anchor),
		tags,
		deephash.Blob(i.Data),
	})
}

// Sign fills in the owner and signature using s.
func (i *Item) Sign(ctx context.Context, s Signer) error {
	cfg := s.Config()
	meta, ok := sigMetas[cfg.SignatureType]
	if !ok {
		return &currency.SigningError{Currency: cfg.Name, Err: fmt.Errorf("signature type %d cannot sign data items", cfg.SignatureType)}
	}
	owner, err := s.Owner(ctx)
	if err != nil {
		return err
	}
	if len(owner) != meta.ownerLen {
		return &currency.SigningError{Currency: cfg.Name, Err: fmt.Errorf("owner is %d bytes, want %d", len(owner), meta.ownerLen)}
	}
	i.SignatureType = cfg.SignatureType
	i.Owner = owner

	sig, err := s.Sign(ctx, i.SignatureData())
	if err != nil {
		return err
	}
	if len(sig) != meta.sigLen {
		return &currency.SigningError{Currency: cfg.Name, Err: fmt.Errorf("signature is %d bytes, want %d", len(sig), meta.sigLen)}
	}
	i.Signature = sig
	return nil
}

// IsSigned reports whether Sign has completed.
func (i *Item) IsSigned() bool { return len(i.Signature) > 0 }

// ID is the base64url SHA-256 of the signature.
func (i *Item) ID() string {
	if !i.IsSigned() {
		return ""
	}
	h := sha256.Sum256(i.Signature)
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// Verify checks the signature with the supplied chain verifier.
func (i *Item) Verify(verify func(pub, data, sig []byte) bool) bool {
	return i.IsSigned() && verify(i.Owner, i.SignatureData(), i.Signature)
}

// ErrNotSigned is returned by Bytes on an unsigned item.
var ErrNotSigned = errors.New("data item is not signed")

// Bytes serializes a signed item to its binary form.
func (i *Item) Bytes() ([]byte, error) {
	if !i.IsSigned() {
		return nil, ErrNotSigned
	}
	tagBytes := encodeTags(i.Tags)

	size := 2 + len(i.Signature) + len(i.Owner) + 2 + len(i.Target) + len(i.Anchor) + 16 + len(tagBytes) + len(i.Data)
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(i.SignatureType))
	buf = append(buf, i.Signature...)
	buf = append(buf, i.Owner...)
	buf = appendOptional(buf, i.Target)
	buf = appendOptional(buf, i.Anchor)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(i.Tags)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(tagBytes)))
	buf = append(buf, tagBytes...)
	return append(buf, i.Data...), nil
}

func appendOptional(buf, field []byte) []byte {
	if len(field) == 0 {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, field...)
}

// Parse decodes a binary data item. The signature is not verified.
func Parse(b []byte) (*Item, error) {
	r := reader{b: b}
	sigType := int(r.uint16())
	meta, ok := sigMetas[sigType]
	if !ok && r.err == nil {
		return nil, fmt.Errorf("unknown signature type %d", sigType)
	}
	item := &Item{SignatureType: sigType}
	item.Signature = r.next(meta.sigLen)
	item.Owner = r.next(meta.ownerLen)
	item.Target = r.optional(32)
	item.Anchor = r.optional(32)
	count := r.uint64()
	tagLen := r.uint64()
	if r.err == nil && tagLen > uint64(len(r.b)) {
		return nil, errShortItem
	}
	tagBytes := r.next(int(tagLen))
	if r.err != nil {
		return nil, r.err
	}
	tags, err := decodeTags(tagBytes)
	if err != nil {
		return nil, err
	}
	if uint64(len(tags)) != count {
		return nil, fmt.Errorf("tag count mismatch: header says %d, decoded %d", count, len(tags))
	}
	item.Tags = tags
	item.Data = r.b
	return item, nil
}

var errShortItem = errors.New("truncated data item")

type reader struct {
	b   []byte
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = errShortItem
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) optional(n int) []byte {
	flag := r.next(1)
	if flag == nil || flag[0] == 0 {
		return nil
	}
	return r.next(n)
}
