// Package sequential implements the sequential wrapper: it turns any
// BuildingBlock into a thread-safe one by guarding every method with a
// poisoning reader/writer lock, and supports cheap, reference-counted
// cloning so the same underlying block can be shared across goroutines.
package sequential

import (
	"iter"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/internal/rwlock"
)

// Block wraps an inner BuildingBlock with a poisoning RWLock. Read-only
// operations (Capacity, Size, Contains) acquire the lock in shared mode;
// every mutating operation acquires it exclusively. If a prior writer
// panicked while holding the exclusive lock, every subsequent acquisition
// returns the zero value / false / empty slice for its operation (Push
// instead hands back every entry it was given, since none was kept), per
// spec §7's poisoning error kind, rather than propagating a Go error
// (the BuildingBlock contract has no error return).
type Block[K comparable, V any] struct {
	inner blockcache.BuildingBlock[K, V]
	lock  *rwlock.RWLock
}

var _ blockcache.BuildingBlock[string, int] = (*Block[string, int])(nil)

// New wraps inner in a sequential lock with a reference count of one.
func New[K comparable, V any](inner blockcache.BuildingBlock[K, V]) *Block[K, V] {
	return &Block[K, V]{inner: inner, lock: rwlock.New(nil)}
}

// Clone returns a new handle that aliases the same inner block and lock;
// distinct clones may be used from different goroutines, serialized by the
// shared lock. The inner block's lifetime is not managed by this package
// (BuildingBlock has no Close); Clone's reference counting exists so a
// caller that does manage a Closer-like resource inside inner can hook
// rwlock.New's onZero callback through a custom constructor if needed.
func (b *Block[K, V]) Clone() *Block[K, V] {
	return &Block[K, V]{inner: b.inner, lock: b.lock.Clone()}
}

// Release drops this handle's share of the reference count.
func (b *Block[K, V]) Release() { b.lock.Release() }

// Poisoned reports whether a prior writer panicked while holding the
// exclusive lock.
func (b *Block[K, V]) Poisoned() bool { return b.lock.Poisoned() }

// Capacity implements blockcache.BuildingBlock.
func (b *Block[K, V]) Capacity() int64 {
	var out int64

	_ = rwlock.WithReadLock(b.lock, func() error {
		out = b.inner.Capacity()

		return nil
	})

	return out
}

// Size implements blockcache.BuildingBlock.
func (b *Block[K, V]) Size() int64 {
	var out int64

	_ = rwlock.WithReadLock(b.lock, func() error {
		out = b.inner.Size()

		return nil
	})

	return out
}

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool {
	var out bool

	_ = rwlock.WithReadLock(b.lock, func() error {
		out = b.inner.Contains(key)

		return nil
	})

	return out
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	var (
		out blockcache.Pair[K, V]
		ok  bool
	)

	_ = rwlock.WithWriteLock(b.lock, func() error {
		out, ok = b.inner.Take(key)

		return nil
	})

	return out, ok
}

// TakeMultiple implements blockcache.BuildingBlock.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	var out []blockcache.Pair[K, V]

	_ = rwlock.WithWriteLock(b.lock, func() error {
		out = b.inner.TakeMultiple(keys)

		return nil
	})

	return out
}

// Pop implements blockcache.BuildingBlock.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	var out []blockcache.Pair[K, V]

	_ = rwlock.WithWriteLock(b.lock, func() error {
		out = b.inner.Pop(n)

		return nil
	})

	return out
}

// Push implements blockcache.BuildingBlock.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	out := entries

	_ = rwlock.WithWriteLock(b.lock, func() error {
		out = b.inner.Push(entries)

		return nil
	})

	if b.lock.Poisoned() {
		// A poisoned wrapper must not claim to have retained entries it
		// never touched.
		return entries
	}

	return out
}

// Flush implements blockcache.BuildingBlock. The caller holds the write
// lock for the duration of the drain: the lock is acquired before the
// sequence starts and released only once the inner iterator is exhausted
// or the caller stops iterating early.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	return func(yield func(blockcache.Pair[K, V]) bool) {
		if err := b.lock.Lock(); err != nil {
			return
		}

		var recovered any

		func() {
			defer func() { recovered = recover() }()

			for p := range b.inner.Flush() {
				if !yield(p) {
					return
				}
			}
		}()

		b.lock.Unlock(recovered)

		if recovered != nil {
			panic(recovered)
		}
	}
}
