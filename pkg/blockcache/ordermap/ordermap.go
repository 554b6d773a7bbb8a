// Package ordermap implements the ordered-map engine: a key-indexed map
// paired with a value-ordered set that supports logarithmic-time eviction
// of the greatest value.
//
// The design leaves the ordered-set data structure open; this
// implementation uses Go's stdlib container/heap as an index-tracking
// priority queue rather than a balanced tree, because it needs only
// "remove the max" and "remove an arbitrary known key" (heap.Fix after
// relocating the element to the end, or heap.Remove by tracked index),
// both of which container/heap supports in O(log n) once the element's
// current heap position is known. A map from key to heap position supplies
// that lookup.
package ordermap

import (
	"cmp"
	"container/heap"
	"iter"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
)

type node[K cmp.Ordered, V any] struct {
	key   K
	value V
	size  int64
}

// orderedSet is a max-heap of node pointers ordered by value, with an
// index back-pointer per key so arbitrary removal is O(log n).
type orderedSet[K cmp.Ordered, V any] struct {
	nodes []*node[K, V]
	pos   map[K]int
	less  blockcache.LessFunc[V]
}

func newOrderedSet[K cmp.Ordered, V any](less blockcache.LessFunc[V]) *orderedSet[K, V] {
	return &orderedSet[K, V]{pos: make(map[K]int), less: less}
}

func (s *orderedSet[K, V]) Len() int { return len(s.nodes) }

// Less implements a max-heap: the "smaller" heap element is the one with
// the greater value, so Pop yields the greatest value first. Ties in value
// break on key, the greater key counting as the greater entry, so eviction
// among equally-valued entries is deterministic instead of depending on
// heap layout.
func (s *orderedSet[K, V]) Less(i, j int) bool {
	a, b := s.nodes[i], s.nodes[j]

	if s.less(a.value, b.value) {
		return false
	}

	if s.less(b.value, a.value) {
		return true
	}

	return a.key > b.key
}

func (s *orderedSet[K, V]) Swap(i, j int) {
	s.nodes[i], s.nodes[j] = s.nodes[j], s.nodes[i]
	s.pos[s.nodes[i].key] = i
	s.pos[s.nodes[j].key] = j
}

func (s *orderedSet[K, V]) Push(x any) {
	n := x.(*node[K, V])
	s.pos[n.key] = len(s.nodes)
	s.nodes = append(s.nodes, n)
}

func (s *orderedSet[K, V]) Pop() any {
	last := len(s.nodes) - 1
	n := s.nodes[last]
	s.nodes = s.nodes[:last]
	delete(s.pos, n.key)

	return n
}

func (s *orderedSet[K, V]) insert(n *node[K, V]) {
	heap.Push(s, n)
}

func (s *orderedSet[K, V]) removeKey(key K) (*node[K, V], bool) {
	i, ok := s.pos[key]
	if !ok {
		return nil, false
	}

	removed := heap.Remove(s, i)

	return removed.(*node[K, V]), true
}

func (s *orderedSet[K, V]) popMax() (*node[K, V], bool) {
	if len(s.nodes) == 0 {
		return nil, false
	}

	return heap.Pop(s).(*node[K, V]), true
}

// Block is the ordered-map engine. It forbids duplicate keys: a Push that
// names an already-present key returns that incoming entry unmodified in
// the rejected slice, leaving the existing entry untouched.
type Block[K cmp.Ordered, V any] struct {
	set      *orderedSet[K, V]
	total    int64
	capacity int64
	sizeFn   blockcache.SizeFunc[K, V]
}

var _ blockcache.BuildingBlock[int, int] = (*Block[int, int])(nil)
var _ blockcache.MutGetter[int, int] = (*Block[int, int])(nil)

// New creates an ordered-map engine. Get is intentionally not implemented
// (see package doc of pkg/blockcache/access.go's MutGetter discussion and
// spec §4.3): handing out a shared reference to a value stored in the
// ordered set would let a caller mutate it without the set noticing,
// breaking the ordering invariant. GetMut is provided instead, by taking
// the entry out into a handle that re-inserts it on Release.
func New[K cmp.Ordered, V any](
	capacity int64,
	less blockcache.LessFunc[V],
	sizeFn blockcache.SizeFunc[K, V],
) *Block[K, V] {
	return &Block[K, V]{
		set:      newOrderedSet[K, V](less),
		capacity: capacity,
		sizeFn:   sizeFn,
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

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool {
	_, ok := b.set.pos[key]

	return ok
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	n, ok := b.set.removeKey(key)
	if !ok {
		var zero blockcache.Pair[K, V]

		return zero, false
	}

	b.total -= n.size

	return blockcache.Pair[K, V]{Key: n.key, Value: n.value}, true
}

// TakeMultiple implements blockcache.BuildingBlock.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	if keys == nil {
		return nil
	}

	var taken []blockcache.Pair[K, V]

	remaining := make([]K, 0, len(*keys))

	for _, k := range *keys {
		if p, ok := b.Take(k); ok {
			taken = append(taken, p)
		} else {
			remaining = append(remaining, k)
		}
	}

	*keys = remaining

	return taken
}

// Pop implements blockcache.BuildingBlock by repeatedly removing the
// maximum until the cumulative size reaches n or the set is empty.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	if n <= 0 {
		return nil
	}

	var (
		out  []blockcache.Pair[K, V]
		cum  int64
	)

	for cum < n {
		m, ok := b.set.popMax()
		if !ok {
			break
		}

		b.total -= m.size
		cum += m.size
		out = append(out, blockcache.Pair[K, V]{Key: m.key, Value: m.value})
	}

	return out
}

// Push implements the §4.1.a decision table, specialized for the
// ordered-map's no-duplicates rule: a duplicate key is always rejected
// without mutating the existing entry, whichever push branch applies.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	if len(entries) == 0 {
		return nil
	}

	var rejected []blockcache.Pair[K, V]

	fresh := make([]blockcache.Pair[K, V], 0, len(entries))
	sizes := make([]int64, 0, len(entries))

	var w int64

	for _, e := range entries {
		if b.Contains(e.Key) {
			rejected = append(rejected, e)

			continue
		}

		s := b.weigh(e)
		fresh = append(fresh, e)
		sizes = append(sizes, s)
		w += s
	}

	room := b.capacity - b.total

	switch {
	case w <= room:
		for i, e := range fresh {
			b.set.insert(&node[K, V]{key: e.Key, value: e.Value, size: sizes[i]})
			b.total += sizes[i]
		}

	case w >= b.capacity:
		// Keep the smallest-by-value subset of the incoming batch that
		// fits in capacity; evict everything currently stored first,
		// since nothing old can coexist with a push this large.
		evicted := b.Pop(b.total)
		rejected = append(rejected, evicted...)

		order := make([]int, len(fresh))
		for i := range order {
			order[i] = i
		}

		sortByValueAsc(fresh, order, b.set.less)

		var kept int64

		for _, idx := range order {
			if kept+sizes[idx] > b.capacity {
				rejected = append(rejected, fresh[idx])

				continue
			}

			b.set.insert(&node[K, V]{key: fresh[idx].Key, value: fresh[idx].Value, size: sizes[idx]})
			b.total += sizes[idx]
			kept += sizes[idx]
		}

	default:
		for i, e := range fresh {
			b.set.insert(&node[K, V]{key: e.Key, value: e.Value, size: sizes[i]})
			b.total += sizes[i]
		}

		if overflow := b.total - b.capacity; overflow > 0 {
			evicted := b.Pop(overflow)
			rejected = append(rejected, evicted...)
		}
	}

	return rejected
}

func sortByValueAsc[K comparable, V any](entries []blockcache.Pair[K, V], order []int, less blockcache.LessFunc[V]) {
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && less(entries[order[j]].Value, entries[order[j-1]].Value); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
}

// Flush implements blockcache.BuildingBlock, draining greatest-first.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	return func(yield func(blockcache.Pair[K, V]) bool) {
		for {
			m, ok := b.set.popMax()
			if !ok {
				return
			}

			b.total -= m.size

			if !yield(blockcache.Pair[K, V]{Key: m.key, Value: m.value}) {
				return
			}
		}
	}
}

// GetMut implements blockcache.MutGetter by taking the entry out of the
// ordered set into a handle that re-inserts it on Release, at its
// (possibly new) value position.
func (b *Block[K, V]) GetMut(key K) (blockcache.MutHandle[V], bool) {
	n, ok := b.set.removeKey(key)
	if !ok {
		return nil, false
	}

	b.total -= n.size
	current := n.value

	return blockcache.NewWriteHandle(current, func(v V) {
		current = v
	}, func() {
		size := n.size
		if b.sizeFn != nil {
			size = b.sizeFn(blockcache.Pair[K, V]{Key: n.key, Value: current})
		}

		b.set.insert(&node[K, V]{key: n.key, value: current, size: size})
		b.total += size
	}), true
}

// Len reports the number of live entries, mainly for tests.
func (b *Block[K, V]) Len() int { return b.set.Len() }
