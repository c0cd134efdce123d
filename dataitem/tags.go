package dataitem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Limits enforced by bundlers on data item tags.
const (
	MaxTags        = 128
	MaxTagNameLen  = 1024
	MaxTagValueLen = 3072
)

// Tag is a name/value pair attached to a data item.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func validateTags(tags []Tag) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("too many tags: %d > %d", len(tags), MaxTags)
	}
	for i, t := range tags {
		if len(t.Name) == 0 || len(t.Name) > MaxTagNameLen {
			return fmt.Errorf("tag %d: name length %d out of range", i, len(t.Name))
		}
		if len(t.Value) == 0 || len(t.Value) > MaxTagValueLen {
			return fmt.Errorf("tag %d: value length %d out of range", i, len(t.Value))
		}
	}
	return nil
}

// encodeTags writes tags as an Avro array of {name: bytes, value: bytes}
// records. An empty tag list encodes to zero bytes.
func encodeTags(tags []Tag) []byte {
	if len(tags) == 0 {
		return nil
	}
	var buf []byte
	buf = appendLong(buf, int64(len(tags)))
	for _, t := range tags {
		buf = appendLong(buf, int64(len(t.Name)))
		buf = append(buf, t.Name...)
		buf = appendLong(buf, int64(len(t.Value)))
		buf = append(buf, t.Value...)
	}
	return appendLong(buf, 0)
}

func decodeTags(b []byte) ([]Tag, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var tags []Tag
	for {
		n, rest, err := readLong(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if n == 0 {
			break
		}
		// A negative block count is followed by the block size in bytes.
		if n < 0 {
			n = -n
			if _, b, err = readLong(b); err != nil {
				return nil, err
			}
		}
		for i := int64(0); i < n; i++ {
			var name, value []byte
			if name, b, err = readBytes(b); err != nil {
				return nil, fmt.Errorf("tag name: %w", err)
			}
			if value, b, err = readBytes(b); err != nil {
				return nil, fmt.Errorf("tag value: %w", err)
			}
			tags = append(tags, Tag{Name: string(name), Value: string(value)})
		}
	}
	return tags, nil
}

func appendLong(buf []byte, v int64) []byte {
	return binary.AppendUvarint(buf, uint64((v<<1)^(v>>63)))
}

var errShortTags = errors.New("truncated tag data")

func readLong(b []byte) (int64, []byte, error) {
	u, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, errShortTags
	}
	return int64(u>>1) ^ -int64(u&1), b[n:], nil
}

func readBytes(b []byte) ([]byte, []byte, error) {
	l, rest, err := readLong(b)
	if err != nil {
		return nil, nil, err
	}
	if l < 0 || int64(len(rest)) < l {
		return nil, nil, errShortTags
	}
	return rest[:l], rest[l:], nil
}
