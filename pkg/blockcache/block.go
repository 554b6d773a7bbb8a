// Package blockcache defines the building-block contract shared by every
// cache engine and combinator in this module: a bounded container of
// key/value entries with a uniform capacity, eviction, and error-free
// mutation model.
//
// An engineer composes a multi-tier cache by nesting implementations of
// BuildingBlock: an associative combinator fanning out over array engines,
// wrapped in a sequential lock, feeding an exclusive combinator whose back
// tier is a byte-stream engine, and so on. Every level speaks the same
// eight-method contract, so combinators never need to know what kind of
// block they are routing to.
package blockcache

import "iter"

// Pair is the unit of storage: one key/value entry.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// SizeFunc computes the weight of an entry. The sum of a block's live
// entries' weights must never exceed its capacity except transiently
// inside Push. A nil SizeFunc is equivalent to a function returning 1 for
// every entry (count semantics).
type SizeFunc[K comparable, V any] func(Pair[K, V]) int64

// LessFunc orders values for eviction: Less(a, b) reports whether a is the
// lesser value, in which case b is evicted before a. Pop removes the
// greatest values first, so it repeatedly selects entries e for which
// Less(e, x) holds for no remaining entry x.
type LessFunc[V any] func(a, b V) bool

// BuildingBlock is the uniform contract satisfied by every cache engine and
// combinator in this module. All methods are synchronous and return
// immediately; none of the base engines or combinators perform their own
// locking (see pkg/blockcache/sequential for thread-safety).
type BuildingBlock[K comparable, V any] interface {
	// Capacity returns the configured upper bound on Size.
	Capacity() int64

	// Size returns the current accounted weight of all live entries.
	Size() int64

	// Contains reports whether an entry with the given key is stored. It
	// does not reorder or otherwise mutate the block.
	Contains(key K) bool

	// Take removes and returns the entry with the given key, if any.
	Take(key K) (Pair[K, V], bool)

	// TakeMultiple removes and returns every entry whose key appears in
	// keys. On return, keys holds only the keys that were not found,
	// compacted in place; the returned slice's length is the number of
	// matches removed from keys. The order of returned entries is
	// unspecified.
	TakeMultiple(keys *[]K) []Pair[K, V]

	// Pop evicts entries with the greatest values until the cumulative
	// removed size is at least n, or the block is empty. If the block's
	// total size is less than n, every entry is removed and returned.
	Pop(n int64) []Pair[K, V]

	// Push attempts to insert every entry in entries. It returns the
	// entries that could not be retained: duplicates (for blocks that
	// reject duplicate keys) and anything evicted or refused to honor
	// capacity. See the push policy in the package doc of each engine.
	Push(entries []Pair[K, V]) []Pair[K, V]

	// Flush lazily drains the block. Once the returned sequence is fully
	// consumed, the block is empty. Breaking out of the iteration early
	// leaves the block in an engine-documented, consistent state.
	Flush() iter.Seq[Pair[K, V]]
}
