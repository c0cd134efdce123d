// Package deephash implements the Arweave deep hash: a SHA-384 digest over a
// tree of byte blobs and lists, used as the signing message for Arweave
// transactions, data items and bundler withdrawals.
package deephash

import (
	"crypto/sha512"
	"strconv"
)

// Chunk is either a Blob or a List.
type Chunk interface {
	digest() [sha512.Size384]byte
}

// Blob is a leaf of the tree.
type Blob []byte

// List is an ordered branch of the tree.
type List []Chunk

// String is shorthand for a Blob holding the UTF-8 bytes of s.
func String(s string) Blob { return Blob(s) }

func (b Blob) digest() [sha512.Size384]byte {
	tag := sha512.Sum384([]byte("blob" + strconv.Itoa(len(b))))
	data := sha512.Sum384(b)

	buf := make([]byte, 0, 2*sha512.Size384)
	buf = append(buf, tag[:]...)
	buf = append(buf, data[:]...)
	return sha512.Sum384(buf)
}

func (l List) digest() [sha512.Size384]byte {
	acc := sha512.Sum384([]byte("list" + strconv.Itoa(len(l))))
	buf := make([]byte, 2*sha512.Size384)
	for _, c := range l {
		h := c.digest()
		copy(buf, acc[:])
		copy(buf[sha512.Size384:], h[:])
		acc = sha512.Sum384(buf)
	}
	return acc
}

// Hash returns the 48-byte deep hash of c.
func Hash(c Chunk) []byte {
	h := c.digest()
	return h[:]
}
