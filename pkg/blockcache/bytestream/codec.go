package bytestream

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
)

// Codec serializes and deserializes entries to and from the length-prefixed
// byte form stored in a chunk. Exactly one Codec is configured per engine
// instance, mirroring the persist.Codec contract this is modeled on, but
// scoped to a single (K,V) entry rather than a whole file's worth of state.
type Codec[K comparable, V any] interface {
	// Encode serializes one entry.
	Encode(p blockcache.Pair[K, V]) ([]byte, error)

	// Decode deserializes one entry from exactly the bytes Encode
	// produced (the chunk framing strips any trailing zero padding before
	// calling Decode).
	Decode(data []byte) (blockcache.Pair[K, V], error)
}

// GobCodec implements Codec using encoding/gob, the stdlib serialization
// the teacher's persist package also defaults to for opaque Go values. It
// is length-prefix-free on its own; chunk.go adds the length prefix and
// zero padding the on-disk format requires.
type GobCodec[K comparable, V any] struct{}

var _ Codec[int, int] = GobCodec[int, int]{}

// Encode implements Codec.
func (GobCodec[K, V]) Encode(p blockcache.Pair[K, V]) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("bytestream: gob encode: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode implements Codec.
func (GobCodec[K, V]) Decode(data []byte) (blockcache.Pair[K, V], error) {
	var p blockcache.Pair[K, V]

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return p, fmt.Errorf("bytestream: gob decode: %w", err)
	}

	return p, nil
}
