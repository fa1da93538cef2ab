package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec converts values to and from their stored BLOB form.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSONCodec stores values as JSON. Suitable for plain records.
type JSONCodec[V any] struct{}

// Encode implements Codec.
// HTML escaping is disabled so stored text stays byte-for-byte readable.
func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode implements Codec.
func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// StringCodec stores strings as raw UTF-8, without JSON quoting. Used for
// text documents and base64 audio payloads, which can be megabytes.
type StringCodec struct{}

// Encode implements Codec.
func (StringCodec) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

// Decode implements Codec.
func (StringCodec) Decode(data []byte) (string, error) {
	return string(data), nil
}

// BytesCodec stores byte payloads unchanged.
type BytesCodec struct{}

// Encode implements Codec.
// A nil slice is stored as an empty payload; the column is NOT NULL.
func (BytesCodec) Encode(v []byte) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	return v, nil
}

// Decode implements Codec.
func (BytesCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
