// Package array implements the array engine: an unsorted sequence of
// entries with size-weighted, ordered eviction. It is the simplest
// BuildingBlock — no index structure beyond the slice itself — and the
// baseline against which the other engines trade memory or CPU for faster
// operations.
package array

import (
	"iter"
	"sort"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
)

// Block is the array engine. It permits duplicate keys; Contains and Take
// operate on the first match in storage order.
type Block[K comparable, V any] struct {
	entries  []blockcache.Pair[K, V]
	sizes    []int64
	total    int64
	capacity int64
	sizeFn   blockcache.SizeFunc[K, V]
	less     blockcache.LessFunc[V]
}

var _ blockcache.BuildingBlock[int, int] = (*Block[int, int])(nil)
var _ blockcache.Getter[int, int] = (*Block[int, int])(nil)
var _ blockcache.MutGetter[int, int] = (*Block[int, int])(nil)

// New creates an array engine with the given capacity. less orders values
// for eviction (Pop removes the greatest values first: those that are Less
// than no other value);
// sizeFn weighs entries and defaults to count semantics (weight 1) when
// nil.
func New[K comparable, V any](
	capacity int64,
	less blockcache.LessFunc[V],
	sizeFn blockcache.SizeFunc[K, V],
) *Block[K, V] {
	return &Block[K, V]{
		capacity: capacity,
		sizeFn:   sizeFn,
		less:     less,
	}
}

func (b *Block[K, V]) weigh(p blockcache.Pair[K, V]) int64 {
	if b.sizeFn == nil {
		return 1
	}

	return b.sizeFn(p)
}

// Capacity implements blockcache.BuildingBlock.
func (b *Block[K, V]) Capacity() int64 { return b.capacity }

// Size implements blockcache.BuildingBlock.
func (b *Block[K, V]) Size() int64 { return b.total }

func (b *Block[K, V]) indexOf(key K) int {
	for i, e := range b.entries {
		if e.Key == key {
			return i
		}
	}

	return -1
}

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool { return b.indexOf(key) >= 0 }

// removeAt swap-removes the entry at index i and returns it.
func (b *Block[K, V]) removeAt(i int) blockcache.Pair[K, V] {
	p := b.entries[i]
	s := b.sizes[i]

	last := len(b.entries) - 1
	b.entries[i] = b.entries[last]
	b.sizes[i] = b.sizes[last]
	b.entries = b.entries[:last]
	b.sizes = b.sizes[:last]

	b.total -= s

	return p
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	i := b.indexOf(key)
	if i < 0 {
		var zero blockcache.Pair[K, V]

		return zero, false
	}

	return b.removeAt(i), true
}

// TakeMultiple implements blockcache.BuildingBlock. Matched keys are
// compacted out of *keys in place.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	if keys == nil || len(*keys) == 0 {
		return nil
	}

	wanted := make(map[K]struct{}, len(*keys))
	for _, k := range *keys {
		wanted[k] = struct{}{}
	}

	var taken []blockcache.Pair[K, V]

	remaining := make([]K, 0, len(*keys))
	matched := make(map[K]struct{}, len(*keys))

	i := 0
	for i < len(b.entries) {
		if _, want := wanted[b.entries[i].Key]; want {
			if _, already := matched[b.entries[i].Key]; !already {
				matched[b.entries[i].Key] = struct{}{}
				taken = append(taken, b.removeAt(i))

				continue
			}
		}

		i++
	}

	for _, k := range *keys {
		if _, ok := matched[k]; !ok {
			remaining = append(remaining, k)
		}
	}

	*keys = remaining

	return taken
}

// Pop implements blockcache.BuildingBlock: it sorts by value ascending and
// splits off a tail whose cumulative size first reaches n.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	if n <= 0 || len(b.entries) == 0 {
		return nil
	}

	order := make([]int, len(b.entries))
	for i := range order {
		order[i] = i
	}

	sort.Slice(order, func(i, j int) bool {
		return b.less(b.entries[order[i]].Value, b.entries[order[j]].Value)
	})

	var cum int64

	cut := len(order)

	for i := len(order) - 1; i >= 0; i-- {
		cum += b.sizes[order[i]]
		cut = i

		if cum >= n {
			break
		}
	}

	victimIdx := order[cut:]

	// Sort descending so removeAt's swap-remove never invalidates a
	// not-yet-processed victim index.
	sort.Sort(sort.Reverse(sort.IntSlice(victimIdx)))

	out := make([]blockcache.Pair[K, V], 0, len(victimIdx))
	for _, idx := range victimIdx {
		out = append(out, b.removeAt(idx))
	}

	return out
}

// Push implements the §4.1.a decision table.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	if len(entries) == 0 {
		return nil
	}

	sizes := make([]int64, len(entries))

	var w int64
	for i, e := range entries {
		sizes[i] = b.weigh(e)
		w += sizes[i]
	}

	room := b.capacity - b.total

	switch {
	case w <= room:
		for i, e := range entries {
			b.entries = append(b.entries, e)
			b.sizes = append(b.sizes, sizes[i])
			b.total += sizes[i]
		}

		return nil

	case w >= b.capacity:
		order := make([]int, len(entries))
		for i := range order {
			order[i] = i
		}

		sort.Slice(order, func(i, j int) bool {
			return b.less(entries[order[i]].Value, entries[order[j]].Value)
		})

		// Evict everything currently stored: nothing can coexist with a
		// push this large under this policy.
		evicted := b.flushAll()

		var kept int64

		rejected := evicted

		for _, idx := range order {
			if kept+sizes[idx] > b.capacity {
				rejected = append(rejected, entries[idx])

				continue
			}

			b.entries = append(b.entries, entries[idx])
			b.sizes = append(b.sizes, sizes[idx])
			b.total += sizes[idx]
			kept += sizes[idx]
		}

		return rejected

	default:
		freed := b.Pop(w - room)

		for i, e := range entries {
			b.entries = append(b.entries, e)
			b.sizes = append(b.sizes, sizes[i])
			b.total += sizes[i]
		}

		return freed
	}
}

func (b *Block[K, V]) flushAll() []blockcache.Pair[K, V] {
	out := b.entries
	b.entries = nil
	b.sizes = nil
	b.total = 0

	return out
}

// Flush implements blockcache.BuildingBlock. Per the engine's documented
// policy, the whole sequence is detached and zeroed immediately, not
// lazily; the returned iterator merely walks the detached copy, so an
// early break still leaves the block empty.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	drained := b.flushAll()

	return func(yield func(blockcache.Pair[K, V]) bool) {
		for _, p := range drained {
			if !yield(p) {
				return
			}
		}
	}
}

// Get implements blockcache.Getter. Array storage is inline, so the handle
// borrows the stored value directly.
func (b *Block[K, V]) Get(key K) (blockcache.Handle[V], bool) {
	i := b.indexOf(key)
	if i < 0 {
		return nil, false
	}

	return blockcache.NewReadHandle(b.entries[i].Value), true
}

// GetMut implements blockcache.MutGetter. Because array storage is inline,
// Set mutates the slice entry directly with no write-back step needed.
func (b *Block[K, V]) GetMut(key K) (blockcache.MutHandle[V], bool) {
	i := b.indexOf(key)
	if i < 0 {
		return nil, false
	}

	idx := i

	return blockcache.NewWriteHandle(b.entries[idx].Value, func(v V) {
		b.entries[idx].Value = v
	}), true
}

// Len reports the number of live entries, mainly for tests.
func (b *Block[K, V]) Len() int { return len(b.entries) }
