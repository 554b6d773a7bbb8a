// Package associative implements the associative combinator: N
// homogeneous inner building blocks addressed by key hash, with a balanced
// eviction algorithm that spreads pops across buckets instead of draining
// whichever bucket happens to hold the globally greatest values.
package associative

import "github.com/cespare/xxhash/v2"

// Hasher computes a 64-bit digest for a key and can be cheaply cloned,
// mirroring spec §4.5's "cloneable hasher" parameter. Every implementation
// here is a pure function of its input, so Clone is trivial; the method
// exists so a Hasher type that does carry mutable state (a seeded,
// incremental hasher, say) has somewhere to put the copy logic.
type Hasher[K comparable] interface {
	Hash(key K) uint64
	Clone() Hasher[K]
}

// BytesHasher hashes a key by first converting it to bytes with ToBytes,
// then running the result through xxhash — the same hash family the rest
// of the example pack (grafana-tempo) uses for bucket routing.
type BytesHasher[K comparable] struct {
	ToBytes func(K) []byte
}

var _ Hasher[string] = BytesHasher[string]{}

// Hash implements Hasher.
func (h BytesHasher[K]) Hash(key K) uint64 {
	return xxhash.Sum64(h.ToBytes(key))
}

// Clone implements Hasher.
func (h BytesHasher[K]) Clone() Hasher[K] { return h }

// StringHasher returns a Hasher for string keys.
func StringHasher() Hasher[string] {
	return BytesHasher[string]{ToBytes: func(s string) []byte { return []byte(s) }}
}
