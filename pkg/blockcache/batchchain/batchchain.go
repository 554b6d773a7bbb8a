// Package batchchain implements the batch-chain combinator: an ordered
// list of homogeneous inner blocks with round-robin push (fully-filled
// blocks rotate to the tail) and tail-first pop.
package batchchain

import (
	"iter"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
)

// Block is the batch-chain combinator.
type Block[K comparable, V any] struct {
	chain []blockcache.BuildingBlock[K, V]
}

var _ blockcache.BuildingBlock[string, int] = (*Block[string, int])(nil)

// New creates a batch-chain combinator over chain, in list order. The
// slice is owned by the Block afterward; callers should not mutate it.
func New[K comparable, V any](chain []blockcache.BuildingBlock[K, V]) *Block[K, V] {
	return &Block[K, V]{chain: chain}
}

// Capacity implements blockcache.BuildingBlock.
func (b *Block[K, V]) Capacity() int64 {
	var total int64
	for _, blk := range b.chain {
		total += blk.Capacity()
	}

	return total
}

// Size implements blockcache.BuildingBlock.
func (b *Block[K, V]) Size() int64 {
	var total int64
	for _, blk := range b.chain {
		total += blk.Size()
	}

	return total
}

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool {
	for _, blk := range b.chain {
		if blk.Contains(key) {
			return true
		}
	}

	return false
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	for _, blk := range b.chain {
		if p, ok := blk.Take(key); ok {
			return p, true
		}
	}

	var zero blockcache.Pair[K, V]

	return zero, false
}

// TakeMultiple implements blockcache.BuildingBlock, walking the chain head
// to tail and narrowing the remaining key set at each step.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	if keys == nil {
		return nil
	}

	var taken []blockcache.Pair[K, V]

	for _, blk := range b.chain {
		if len(*keys) == 0 {
			break
		}

		taken = append(taken, blk.TakeMultiple(keys)...)
	}

	return taken
}

// Pop implements blockcache.BuildingBlock, walking the chain from the tail
// (most-recently-filled) toward the head until n has been freed.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	if n <= 0 {
		return nil
	}

	var (
		out  []blockcache.Pair[K, V]
		freed int64
	)

	for i := len(b.chain) - 1; i >= 0 && freed < n; i-- {
		before := b.chain[i].Size()
		popped := b.chain[i].Pop(n - freed)
		freed += before - b.chain[i].Size()
		out = append(out, popped...)
	}

	return out
}

// Push implements blockcache.BuildingBlock: each block in list order is
// tried in turn, with overflow forwarded to the next. A block that grew
// during this Push and ends it full is rotated to the tail, whether or not
// it rejected anything, so the next Push call starts from whichever block
// was least recently exhausted.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	if len(entries) == 0 || len(b.chain) == 0 {
		return nil
	}

	remaining := entries
	rotate := make([]int, 0, len(b.chain))

	for i := 0; i < len(b.chain) && len(remaining) > 0; i++ {
		blk := b.chain[i]

		before := blk.Size()
		remaining = blk.Push(remaining)

		if blk.Size() == blk.Capacity() && blk.Size() > before {
			rotate = append(rotate, i)
		}
	}

	if len(rotate) > 0 {
		b.rotateToTail(rotate)
	}

	return remaining
}

// rotateToTail moves the chain entries at the given indices (ascending) to
// the end of the chain, preserving the relative order of everything else.
func (b *Block[K, V]) rotateToTail(indices []int) {
	toMove := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		toMove[i] = struct{}{}
	}

	next := make([]blockcache.BuildingBlock[K, V], 0, len(b.chain))
	moved := make([]blockcache.BuildingBlock[K, V], 0, len(indices))

	for i, blk := range b.chain {
		if _, ok := toMove[i]; ok {
			moved = append(moved, blk)
		} else {
			next = append(next, blk)
		}
	}

	b.chain = append(next, moved...)
}

// Flush implements blockcache.BuildingBlock by concatenating every block's
// flush in chain order.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	return func(yield func(blockcache.Pair[K, V]) bool) {
		for _, blk := range b.chain {
			for p := range blk.Flush() {
				if !yield(p) {
					return
				}
			}
		}
	}
}

// Len reports the number of blocks in the chain, mainly for tests.
func (b *Block[K, V]) Len() int { return len(b.chain) }
