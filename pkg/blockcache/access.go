package blockcache

// Handle is a short-lived, dereferenceable view of a stored value, returned
// by Getter.Get. While it is live the block should not be concurrently
// mutated from another handle descending the same path (the sequential
// wrapper enforces this with its reader/writer lock; base engines rely on
// single-threaded use or an enclosing wrapper).
type Handle[V any] interface {
	// Value returns the borrowed value.
	Value() V

	// Release ends the borrow. Engines that materialize a local copy of
	// the stored value (byte-stream, ordered-map) have nothing to do here;
	// engines with inline storage may use it to release an internal lock.
	Release()
}

// MutHandle is a mutable Handle. Engines whose storage is directly
// addressable (array) let Set mutate the entry in place. Engines whose
// storage is not directly addressable (byte-stream, ordered-map) buffer the
// new value and write it back to underlying storage on Release.
type MutHandle[V any] interface {
	Handle[V]

	// Set replaces the borrowed value. The change is guaranteed visible to
	// subsequent operations once Release has been called.
	Set(v V)
}

// Getter is implemented by engines that can hand out a read-only view of a
// stored value without removing it.
type Getter[K comparable, V any] interface {
	// Get returns a handle to the value stored under key, if present. The
	// handle must be released by the caller.
	Get(key K) (Handle[V], bool)
}

// MutGetter is implemented by engines that can hand out a read-write view
// of a stored value without removing it from the block's eviction
// bookkeeping until the handle is released.
type MutGetter[K comparable, V any] interface {
	// GetMut returns a mutable handle to the value stored under key, if
	// present. The handle must be released by the caller; any call to
	// Set is committed no later than Release.
	GetMut(key K) (MutHandle[V], bool)
}

// plainHandle is the Handle/MutHandle implementation for engines that store
// V inline and can therefore mutate and write back through a simple
// closure, without re-serializing or re-inserting anything.
type plainHandle[V any] struct {
	value   V
	dirty   bool
	onSet   func(V)
	release func()
}

func newHandle[V any](value V, release func()) *plainHandle[V] {
	return &plainHandle[V]{value: value, release: release}
}

func newMutHandle[V any](value V, onSet func(V), release func()) *plainHandle[V] {
	return &plainHandle[V]{value: value, onSet: onSet, release: release}
}

func (h *plainHandle[V]) Value() V { return h.value }

func (h *plainHandle[V]) Set(v V) {
	h.value = v
	h.dirty = true

	if h.onSet != nil {
		h.onSet(v)
	}
}

func (h *plainHandle[V]) Release() {
	if h.release != nil {
		h.release()
	}
}

// NewReadHandle wraps value in a read-only Handle. release, if non-nil,
// runs once when the caller calls Release.
func NewReadHandle[V any](value V, release ...func()) Handle[V] {
	var r func()
	if len(release) > 0 {
		r = release[0]
	}

	return newHandle(value, r)
}

// NewWriteHandle wraps value in a MutHandle. onSet is invoked synchronously
// on every call to Set, so engines whose storage is directly addressable
// can mutate it in place with no separate write-back step; engines that
// need to defer the write-back to Release should instead buffer state in
// onSet and flush it from a release callback appended via the variadic
// release parameter.
func NewWriteHandle[V any](value V, onSet func(V), release ...func()) MutHandle[V] {
	var r func()
	if len(release) > 0 {
		r = release[0]
	}

	return newMutHandle(value, onSet, r)
}
