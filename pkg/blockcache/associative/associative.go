package associative

import (
	"iter"
	"sort"

	"github.com/Sumatoshi-tech/blockcache/pkg/alg/bloom"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
)

// Block is the associative combinator: a fixed-size array of N inner
// blocks, routed by hash. It does not itself deduplicate keys across
// buckets — if a key is pushed to two different combinators sharing
// buckets, or the caller bypasses routing, duplicates can exist in
// different buckets. Within one bucket, duplicate handling follows that
// bucket's own engine.
type Block[K comparable, V any] struct {
	buckets []blockcache.BuildingBlock[K, V]
	hasher  Hasher[K]
	less    blockcache.LessFunc[V]
	filter  *bloom.Filter
	toBytes func(K) []byte
}

var _ blockcache.BuildingBlock[string, int] = (*Block[string, int])(nil)

// Option configures a Block at construction.
type Option[K comparable, V any] func(*Block[K, V])

// WithBloomPrefilter adds a Bloom filter tracking every key ever pushed
// (the filter only grows; it is never told about removals, so it degrades
// gracefully to more false positives over time rather than false
// negatives). Contains and Take use it to skip bucket routing entirely for
// definite misses, which matters most when buckets are wrapped by
// pkg/blockcache/sequential and a miss would otherwise cost a lock
// acquisition. toBytes converts a key to the bytes the filter hashes.
func WithBloomPrefilter[K comparable, V any](expectedEntries uint, falsePositiveRate float64, toBytes func(K) []byte) Option[K, V] {
	return func(b *Block[K, V]) {
		filter, err := bloom.NewWithEstimates(expectedEntries, falsePositiveRate)
		if err != nil {
			return
		}

		b.filter = filter
		b.toBytes = toBytes
	}
}

// New creates an associative combinator over buckets, routed by hasher.
// less orders values for eviction and must agree with whatever ordering
// each bucket engine itself uses.
func New[K comparable, V any](
	buckets []blockcache.BuildingBlock[K, V],
	hasher Hasher[K],
	less blockcache.LessFunc[V],
	opts ...Option[K, V],
) *Block[K, V] {
	b := &Block[K, V]{buckets: buckets, hasher: hasher, less: less}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Block[K, V]) bucketIndex(key K) int {
	return int(b.hasher.Hash(key) % uint64(len(b.buckets)))
}

func (b *Block[K, V]) maybeContains(key K) bool {
	if b.filter == nil {
		return true
	}

	return b.filter.Test(b.toBytes(key))
}

func (b *Block[K, V]) noteInserted(key K) {
	if b.filter != nil {
		b.filter.Add(b.toBytes(key))
	}
}

// Capacity implements blockcache.BuildingBlock: the sum of every bucket's
// capacity.
func (b *Block[K, V]) Capacity() int64 {
	var total int64
	for _, bucket := range b.buckets {
		total += bucket.Capacity()
	}

	return total
}

// Size implements blockcache.BuildingBlock: the sum of every bucket's size.
func (b *Block[K, V]) Size() int64 {
	var total int64
	for _, bucket := range b.buckets {
		total += bucket.Size()
	}

	return total
}

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool {
	if !b.maybeContains(key) {
		return false
	}

	return b.buckets[b.bucketIndex(key)].Contains(key)
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	if !b.maybeContains(key) {
		var zero blockcache.Pair[K, V]

		return zero, false
	}

	return b.buckets[b.bucketIndex(key)].Take(key)
}

// TakeMultiple implements blockcache.BuildingBlock by partitioning keys by
// bucket and forwarding each partition.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	if keys == nil || len(*keys) == 0 {
		return nil
	}

	byBucket := make(map[int][]K, len(b.buckets))
	for _, k := range *keys {
		idx := b.bucketIndex(k)
		byBucket[idx] = append(byBucket[idx], k)
	}

	var taken []blockcache.Pair[K, V]

	remaining := make([]K, 0, len(*keys))

	for idx, ks := range byBucket {
		sub := ks
		taken = append(taken, b.buckets[idx].TakeMultiple(&sub)...)
		remaining = append(remaining, sub...)
	}

	*keys = remaining

	return taken
}

// Push implements blockcache.BuildingBlock by partitioning entries by
// bucket and forwarding each partition.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	if len(entries) == 0 {
		return nil
	}

	byBucket := make(map[int][]blockcache.Pair[K, V], len(b.buckets))
	for _, e := range entries {
		idx := b.bucketIndex(e.Key)
		byBucket[idx] = append(byBucket[idx], e)
	}

	var rejected []blockcache.Pair[K, V]

	for idx, sub := range byBucket {
		rej := b.buckets[idx].Push(sub)
		rejSet := make(map[K]struct{}, len(rej))

		for _, r := range rej {
			rejSet[r.Key] = struct{}{}
		}

		for _, e := range sub {
			if _, isRejected := rejSet[e.Key]; !isRejected {
				b.noteInserted(e.Key)
			}
		}

		rejected = append(rejected, rej...)
	}

	return rejected
}

// bucketSize pairs a bucket's index and current size, used by Pop's
// balancing algorithm.
type bucketSize struct {
	index int
	size  int64
}

// BucketSizes reports the current size of every bucket, in bucket order.
// Not part of the BuildingBlock contract; exposed for observability and to
// let tests assert the balance property (supplementing spec §8 scenario 3
// with the introspection the original source exposes via n_sets()).
func (b *Block[K, V]) BucketSizes() []int64 {
	sizes := make([]int64, len(b.buckets))
	for i, bucket := range b.buckets {
		sizes[i] = bucket.Size()
	}

	return sizes
}

// Pop implements the balanced-eviction algorithm of spec §4.5.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	if n <= 0 {
		return nil
	}

	candidates := make([]bucketSize, 0, len(b.buckets))

	var sum int64

	for i, bucket := range b.buckets {
		s := bucket.Size()
		if s == 0 {
			continue
		}

		candidates = append(candidates, bucketSize{index: i, size: s})
		sum += s
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].size > candidates[j].size })

	for len(candidates) > 0 {
		target := (sum - n) / int64(len(candidates)+1)

		smallest := candidates[len(candidates)-1]
		if smallest.size >= target {
			break
		}

		candidates = candidates[:len(candidates)-1]
		sum -= smallest.size
	}

	if len(candidates) == 0 {
		return nil
	}

	target := (sum - n) / int64(len(candidates)+1)

	var (
		out     []blockcache.Pair[K, V]
		removed int64
	)

	for _, c := range candidates {
		if removed >= n {
			break
		}

		want := c.size - target
		if want <= 0 {
			continue
		}

		before := b.buckets[c.index].Size()
		popped := b.buckets[c.index].Pop(want)
		after := b.buckets[c.index].Size()

		out = append(out, popped...)
		removed += before - after
	}

	return out
}

// Flush implements blockcache.BuildingBlock by chaining every bucket's
// flush in bucket order.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	return func(yield func(blockcache.Pair[K, V]) bool) {
		for _, bucket := range b.buckets {
			for p := range bucket.Flush() {
				if !yield(p) {
					return
				}
			}
		}
	}
}
