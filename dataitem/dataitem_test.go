package dataitem

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/bundlr-go/currency"
)

type edSigner struct {
	priv    ed25519.PrivateKey
	sigType int
}

func newEdSigner(t *testing.T) *edSigner {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &edSigner{priv: priv, sigType: currency.SignatureSolana}
}

func (s *edSigner) Config() currency.Config {
	return currency.Config{Name: "solana", SignatureType: s.sigType}
}

func (s *edSigner) Owner(context.Context) ([]byte, error) {
	return s.priv.Public().(ed25519.PublicKey), nil
}

func (s *edSigner) Sign(_ context.Context, data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

func edVerify(pub, data, sig []byte) bool {
	return ed25519.Verify(pub, data, sig)
}

func TestEncodeTags(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x02, 'a', 0x02, 'b', 0x00}, encodeTags([]Tag{{Name: "a", Value: "b"}}))
	assert.Empty(t, encodeTags(nil))

	tags := []Tag{{Name: "Content-Type", Value: "text/plain"}, {Name: "App", Value: strings.Repeat("x", 300)}}
	got, err := decodeTags(encodeTags(tags))
	require.NoError(t, err)
	assert.Equal(t, tags, got)
}

func TestSignSerializeParse(t *testing.T) {
	ctx := context.Background()
	signer := newEdSigner(t)

	target := base64.RawURLEncoding.EncodeToString(make([]byte, 32))
	item, err := New([]byte("hello bundlr"), Options{
		Target: target,
		Anchor: strings.Repeat("a", 32),
		Tags:   []Tag{{Name: "Content-Type", Value: "text/plain"}},
	})
	require.NoError(t, err)
	assert.Empty(t, item.ID())

	_, err = item.Bytes()
	assert.ErrorIs(t, err, ErrNotSigned)

	require.NoError(t, item.Sign(ctx, signer))
	assert.True(t, item.Verify(edVerify))

	sum := sha256.Sum256(item.Signature)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), item.ID())

	raw, err := item.Bytes()
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, currency.SignatureSolana, parsed.SignatureType)
	assert.Equal(t, item.Owner, parsed.Owner)
	assert.Equal(t, item.Target, parsed.Target)
	assert.Equal(t, item.Anchor, parsed.Anchor)
	assert.Equal(t, item.Tags, parsed.Tags)
	assert.Equal(t, []byte("hello bundlr"), parsed.Data)
	assert.Equal(t, item.ID(), parsed.ID())
	assert.True(t, parsed.Verify(edVerify))
}

func TestTamperedItemFailsVerification(t *testing.T) {
	item, err := New([]byte("payload"), Options{})
	require.NoError(t, err)
	require.NoError(t, item.Sign(context.Background(), newEdSigner(t)))

	item.Data = []byte("payload!")
	assert.False(t, item.Verify(edVerify))
}

func TestMinimalItemLayout(t *testing.T) {
	item, err := New(nil, Options{})
	require.NoError(t, err)
	require.NoError(t, item.Sign(context.Background(), newEdSigner(t)))

	raw, err := item.Bytes()
	require.NoError(t, err)
	// type + sig + owner + two absent flags + tag count + tag length
	assert.Len(t, raw, 2+64+32+2+16)
	assert.Equal(t, byte(currency.SignatureSolana), raw[0])
}

func TestNewRejectsBadOptions(t *testing.T) {
	cases := map[string]Options{
		"short anchor": {Anchor: "abc"},
		"short target": {Target: base64.RawURLEncoding.EncodeToString([]byte("abc"))},
		"bad target":   {Target: "***"},
		"empty name":   {Tags: []Tag{{Name: "", Value: "v"}}},
		"long value":   {Tags: []Tag{{Name: "n", Value: strings.Repeat("v", MaxTagValueLen+1)}}},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New([]byte("x"), opts)
			assert.Error(t, err)
		})
	}
}

func TestSignRejectsUnsupportedSigner(t *testing.T) {
	s := newEdSigner(t)
	s.sigType = currency.SignatureNone

	item, err := New([]byte("x"), Options{})
	require.NoError(t, err)

	var se *currency.SigningError
	assert.ErrorAs(t, item.Sign(context.Background(), s), &se)
}

func TestParseTruncated(t *testing.T) {
	item, err := New([]byte("x"), Options{Tags: []Tag{{Name: "a", Value: "b"}}})
	require.NoError(t, err)
	require.NoError(t, item.Sign(context.Background(), newEdSigner(t)))
	raw, err := item.Bytes()
	require.NoError(t, err)

	_, err = Parse(raw[:50])
	assert.Error(t, err)

	_, err = Parse([]byte{0x09, 0x00})
	assert.Error(t, err)
}
