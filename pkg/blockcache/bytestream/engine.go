package bytestream

import (
	"fmt"
	"iter"
	"sort"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/internal/topk"
)

// Block is the byte-stream engine: entries are serialized by Codec and
// stored in power-of-two size-class logs over Streams produced by a
// StreamFactory. It permits duplicate keys; Contains and Take operate on
// the first match encountered while scanning logs in class order.
//
// All I/O and (de)serialization failures degrade to a partial result
// rather than panicking or corrupting engine state, per spec §4.4/§7: a
// failed Take returns false, a failed Push returns the failing entry among
// the rejects, and a failed scan during Pop/TakeMultiple/Contains simply
// stops early and proceeds with what it found.
type Block[K comparable, V any] struct {
	factory     StreamFactory
	codec       Codec[K, V]
	sizeFn      blockcache.SizeFunc[K, V]
	less        blockcache.LessFunc[V]
	compress    bool
	capacity    int64
	total       int64
	logs        map[int]*ioVec
	classOrder  []int
}

var _ blockcache.BuildingBlock[int, int] = (*Block[int, int])(nil)
var _ blockcache.Getter[int, int] = (*Block[int, int])(nil)
var _ blockcache.MutGetter[int, int] = (*Block[int, int])(nil)

// Option configures a Block at construction.
type Option[K comparable, V any] func(*Block[K, V])

// WithCompression enables opportunistic LZ4 compression of chunk payloads.
func WithCompression[K comparable, V any]() Option[K, V] {
	return func(b *Block[K, V]) { b.compress = true }
}

// New creates a byte-stream engine. factory spawns one Stream per size
// class, lazily, the first time that class is used. codec serializes
// entries; less orders values for eviction; sizeFn weighs entries for
// capacity accounting (defaulting to count semantics when nil).
func New[K comparable, V any](
	capacity int64,
	factory StreamFactory,
	codec Codec[K, V],
	less blockcache.LessFunc[V],
	sizeFn blockcache.SizeFunc[K, V],
	opts ...Option[K, V],
) *Block[K, V] {
	b := &Block[K, V]{
		factory:  factory,
		codec:    codec,
		sizeFn:   sizeFn,
		less:     less,
		capacity: capacity,
		logs:     make(map[int]*ioVec),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Block[K, V]) weigh(p blockcache.Pair[K, V]) int64 {
	if b.sizeFn == nil {
		return 1
	}

	return b.sizeFn(p)
}

func (b *Block[K, V]) logFor(class int) (*ioVec, error) {
	if v, ok := b.logs[class]; ok {
		return v, nil
	}

	stream, err := b.factory.Create()
	if err != nil {
		return nil, fmt.Errorf("bytestream: create stream for class %d: %w", class, err)
	}

	v := newIOVec(stream, int64(1)<<uint(class))
	b.logs[class] = v
	b.classOrder = append(b.classOrder, class)
	sort.Ints(b.classOrder)

	return v, nil
}

// Capacity implements blockcache.BuildingBlock.
func (b *Block[K, V]) Capacity() int64 { return b.capacity }

// Size implements blockcache.BuildingBlock.
func (b *Block[K, V]) Size() int64 { return b.total }

type locator struct {
	class int
	index int64
}

// scan walks every log in class order, decoding each chunk and invoking
// visit with the decoded pair and its locator. If visit returns false,
// scanning stops immediately (used to implement early exit for Contains
// and Take). Decode failures are skipped, not fatal, matching the "stops
// early" / "safe subset" failure semantics for a corrupted chunk, while
// I/O failures on the stream itself abort the whole scan since later reads
// from the same stream are equally suspect.
func (b *Block[K, V]) scan(visit func(p blockcache.Pair[K, V], loc locator) bool) error {
	for _, class := range b.classOrder {
		log := b.logs[class]

		for i := int64(0); i < log.Len(); i++ {
			raw, err := log.ReadAt(i)
			if err != nil {
				return fmt.Errorf("bytestream: scan class %d: %w", class, err)
			}

			payload, err := decodeChunk(raw)
			if err != nil {
				continue
			}

			p, err := b.codec.Decode(payload)
			if err != nil {
				continue
			}

			if !visit(p, locator{class: class, index: i}) {
				return nil
			}
		}
	}

	return nil
}

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool {
	found := false

	_ = b.scan(func(p blockcache.Pair[K, V], _ locator) bool {
		if p.Key == key {
			found = true

			return false
		}

		return true
	})

	return found
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	var (
		result blockcache.Pair[K, V]
		loc    locator
		found  bool
	)

	_ = b.scan(func(p blockcache.Pair[K, V], l locator) bool {
		if p.Key == key {
			result = p
			loc = l
			found = true

			return false
		}

		return true
	})

	if !found {
		return result, false
	}

	if _, err := b.logs[loc.class].SwapRemove(loc.index); err != nil {
		return result, false
	}

	b.total -= b.weigh(result)

	return result, true
}

// Get implements blockcache.Getter by materializing a decoded copy of the
// stored value. Nothing is pinned in the log, so the returned handle's
// Release is a no-op.
func (b *Block[K, V]) Get(key K) (blockcache.Handle[V], bool) {
	var (
		value V
		found bool
	)

	_ = b.scan(func(p blockcache.Pair[K, V], _ locator) bool {
		if p.Key == key {
			value = p.Value
			found = true

			return false
		}

		return true
	})

	if !found {
		return nil, false
	}

	return blockcache.NewReadHandle(value), true
}

// GetMut implements blockcache.MutGetter. It materializes a decoded copy
// into a handle; Release re-encodes the (possibly mutated) value and
// overwrites the chunk at its original (class,index) locator when the new
// encoding still fits that size class, falling back to removing the stale
// chunk and re-appending the value fresh when it has grown past it.
func (b *Block[K, V]) GetMut(key K) (blockcache.MutHandle[V], bool) {
	var (
		loc      locator
		original blockcache.Pair[K, V]
		found    bool
	)

	_ = b.scan(func(p blockcache.Pair[K, V], l locator) bool {
		if p.Key == key {
			original = p
			loc = l
			found = true

			return false
		}

		return true
	})

	if !found {
		return nil, false
	}

	current := original.Value

	return blockcache.NewWriteHandle(current, func(v V) {
		current = v
	}, func() {
		b.writeBack(loc, original, current)
	}), true
}

// writeBack re-encodes the value now held under key and overwrites the
// chunk at loc in place, as long as the new encoding still fits the size
// class it was originally framed to. When it no longer fits, the stale
// chunk is removed and the value is appended fresh, landing it in whatever
// class its new encoding now belongs to.
func (b *Block[K, V]) writeBack(loc locator, original blockcache.Pair[K, V], updatedValue V) {
	updated := blockcache.Pair[K, V]{Key: original.Key, Value: updatedValue}

	payload, err := b.codec.Encode(updated)
	if err != nil {
		return
	}

	classSize := int64(1) << uint(loc.class)

	if chunk, err := encodeChunk(payload, classSize, b.compress); err == nil {
		if err := b.logs[loc.class].WriteAt(loc.index, chunk); err == nil {
			b.total += b.weigh(updated) - b.weigh(original)

			return
		}
	}

	if _, err := b.logs[loc.class].SwapRemove(loc.index); err != nil {
		return
	}

	b.total -= b.weigh(original)

	if err := b.append(updated); err == nil {
		b.total += b.weigh(updated)
	}
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

// Pop implements blockcache.BuildingBlock using a bounded top-k selection
// across every log, then removes victims log-by-log in descending index
// order so swap-remove never disturbs an unprocessed victim.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	if n <= 0 {
		return nil
	}

	type candidate struct {
		pair blockcache.Pair[K, V]
		loc  locator
		size int64
	}

	var candidates []candidate

	_ = b.scan(func(p blockcache.Pair[K, V], l locator) bool {
		candidates = append(candidates, candidate{pair: p, loc: l, size: b.weigh(p)})

		return true
	})

	items := make([]topk.Item[int], len(candidates))
	for i, c := range candidates {
		items[i] = topk.Item[int]{Index: i, Size: c.size}
	}

	selected := topk.SelectGreatest(items, func(i int) V { return candidates[i].pair.Value }, b.less, n)

	byClass := make(map[int][]int64)

	var out []blockcache.Pair[K, V]

	for _, s := range selected {
		c := candidates[s.Index]
		byClass[c.loc.class] = append(byClass[c.loc.class], c.loc.index)
		out = append(out, c.pair)
		b.total -= c.size
	}

	for class, indices := range byClass {
		sort.Slice(indices, func(i, j int) bool { return indices[i] > indices[j] })

		for _, idx := range indices {
			_, _ = b.logs[class].SwapRemove(idx)
		}
	}

	return out
}

// Push implements the §4.1.a decision table. Duplicate keys are never
// checked, per the engine's documented contract.
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

	var rejected []blockcache.Pair[K, V]

	switch {
	case w <= room:
		// fit everything
	case w >= b.capacity:
		rejected = append(rejected, b.Pop(b.total)...)
	default:
		rejected = append(rejected, b.Pop(w-room)...)
	}

	budget := b.capacity - b.total

	for i, e := range entries {
		if sizes[i] > budget {
			rejected = append(rejected, e)

			continue
		}

		if err := b.append(e); err != nil {
			rejected = append(rejected, e)

			continue
		}

		b.total += sizes[i]
		budget -= sizes[i]
	}

	return rejected
}

func (b *Block[K, V]) append(p blockcache.Pair[K, V]) error {
	payload, err := b.codec.Encode(p)
	if err != nil {
		return fmt.Errorf("bytestream: encode: %w", err)
	}

	class := classFor(len(payload) + chunkHeaderSize)
	classSize := int64(1) << uint(class)

	chunk, err := encodeChunk(payload, classSize, b.compress)
	if err != nil {
		return err
	}

	log, err := b.logFor(class)
	if err != nil {
		return err
	}

	return log.Append(chunk)
}

// Flush implements blockcache.BuildingBlock, handing ownership of every log
// to a chained iterator and leaving the block empty once fully consumed.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	logs := b.logs
	order := b.classOrder

	b.logs = make(map[int]*ioVec)
	b.classOrder = nil
	b.total = 0

	return func(yield func(blockcache.Pair[K, V]) bool) {
		for _, class := range order {
			log := logs[class]

			for i := int64(0); i < log.Len(); i++ {
				raw, err := log.ReadAt(i)
				if err != nil {
					break
				}

				payload, err := decodeChunk(raw)
				if err != nil {
					continue
				}

				p, err := b.codec.Decode(payload)
				if err != nil {
					continue
				}

				if !yield(p) {
					return
				}
			}

			_ = log.Close()
		}
	}
}
