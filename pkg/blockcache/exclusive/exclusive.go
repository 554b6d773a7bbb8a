// Package exclusive implements the exclusive (front/back) combinator: a
// two-tier cache where front is the fast/small tier and back is the
// victim/large tier. Elements are never present in both tiers at once.
package exclusive

import (
	"iter"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
)

// Block is the exclusive combinator.
type Block[K comparable, V any] struct {
	front blockcache.BuildingBlock[K, V]
	back  blockcache.BuildingBlock[K, V]
}

var _ blockcache.BuildingBlock[string, int] = (*Block[string, int])(nil)

// New creates an exclusive combinator over the given front and back
// blocks. Push routes through front first, spilling overflow to back;
// back is the tier Pop drains first, since it holds whatever front could
// not keep.
func New[K comparable, V any](front, back blockcache.BuildingBlock[K, V]) *Block[K, V] {
	return &Block[K, V]{front: front, back: back}
}

// Capacity implements blockcache.BuildingBlock.
func (b *Block[K, V]) Capacity() int64 { return b.front.Capacity() + b.back.Capacity() }

// Size implements blockcache.BuildingBlock.
func (b *Block[K, V]) Size() int64 { return b.front.Size() + b.back.Size() }

// Contains implements blockcache.BuildingBlock, checking front first.
func (b *Block[K, V]) Contains(key K) bool {
	return b.front.Contains(key) || b.back.Contains(key)
}

// Take implements blockcache.BuildingBlock, checking front first.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	if p, ok := b.front.Take(key); ok {
		return p, true
	}

	return b.back.Take(key)
}

// TakeMultiple implements blockcache.BuildingBlock: front is tried first,
// then back on whatever front left unmatched.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	if keys == nil {
		return nil
	}

	taken := b.front.TakeMultiple(keys)
	taken = append(taken, b.back.TakeMultiple(keys)...)

	return taken
}

// Pop implements blockcache.BuildingBlock: back is the victim tier, so it
// is drained first; only if that is not enough does Pop reach into front.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	if n <= 0 {
		return nil
	}

	backBefore := b.back.Size()
	out := b.back.Pop(n)
	freed := backBefore - b.back.Size()

	if freed < n {
		out = append(out, b.front.Pop(n-freed)...)
	}

	return out
}

// Push implements blockcache.BuildingBlock: entries are forwarded to front;
// whatever front cannot retain spills to back; whatever back cannot retain
// is returned to the caller.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	if len(entries) == 0 {
		return nil
	}

	overflow := b.front.Push(entries)
	if len(overflow) == 0 {
		return nil
	}

	return b.back.Push(overflow)
}

// Flush implements blockcache.BuildingBlock's three-stage composition:
// drain back, drain front into a buffer, push the buffer into back, then
// drain back again. This keeps the invariant that an element lives in at
// most one tier between operations, and gives a well-defined total
// eviction order across the flush.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	return func(yield func(blockcache.Pair[K, V]) bool) {
		for p := range b.back.Flush() {
			if !yield(p) {
				return
			}
		}

		var buffered []blockcache.Pair[K, V]
		for p := range b.front.Flush() {
			buffered = append(buffered, p)
		}

		if len(buffered) > 0 {
			overflow := b.back.Push(buffered)

			for _, p := range overflow {
				if !yield(p) {
					return
				}
			}
		}

		for p := range b.back.Flush() {
			if !yield(p) {
				return
			}
		}
	}
}
