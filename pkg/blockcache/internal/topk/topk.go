// Package topk selects the entries with the greatest values whose
// cumulative size reaches a target, using a bounded min-heap so the cost is
// proportional to the number of candidates examined rather than a full
// sort. The byte-stream engine's Pop is a thin wrapper over this; the
// array and ordered-map engines select their victims themselves.
package topk

import "container/heap"

// Item is one candidate for selection: an opaque index (an engine-specific
// locator, e.g. a slice position or a (log, chunk) pair) plus the size it
// contributes toward the target. The value used to order it is looked up
// from the index through SelectGreatest's valueOf.
type Item[T any] struct {
	Index T
	Size  int64
}

// heapEntry is the internal representation pushed onto the bounded heap: it
// keeps the original Item plus a rank used to break ties deterministically
// by discovery order (among equal values the earlier-scanned candidate
// sits nearer the root and is shed first), matching "ties broken arbitrarily"
// from the source contract in a reproducible way for tests.
type heapEntry[T any] struct {
	item Item[T]
	rank int
}

// minHeap is a container/heap.Interface over heapEntry, ordered by the
// caller-supplied Less so that the smallest surviving candidate sits at the
// root and is the first one evicted from the bounded set when a larger
// candidate arrives.
type minHeap[T any] struct {
	entries []heapEntry[T]
	less    func(a, b T) bool
}

func (h *minHeap[T]) Len() int { return len(h.entries) }

func (h *minHeap[T]) Less(i, j int) bool {
	if h.less(h.entries[i].item.Index, h.entries[j].item.Index) {
		return true
	}

	if h.less(h.entries[j].item.Index, h.entries[i].item.Index) {
		return false
	}

	return h.entries[i].rank < h.entries[j].rank
}

func (h *minHeap[T]) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *minHeap[T]) Push(x any) { h.entries = append(h.entries, x.(heapEntry[T])) }

func (h *minHeap[T]) Pop() any {
	n := len(h.entries)
	last := h.entries[n-1]
	h.entries = h.entries[:n-1]

	return last
}

// SelectGreatest scans candidates in order and returns the subset with the
// greatest values whose cumulative Size is at least target, preferring the
// smallest such subset. less(a, b) must report whether value a orders
// before (is lesser than) value b; candidates must be supplied together
// with the value used to order them via valueOf.
//
// The returned slice is in no particular order; callers that need it
// sorted for safe removal (e.g. descending by index, to swap-remove
// without invalidating earlier indices) must sort it themselves.
func SelectGreatest[T any, V any](
	candidates []Item[T],
	valueOf func(T) V,
	less func(a, b V) bool,
	target int64,
) []Item[T] {
	if target <= 0 || len(candidates) == 0 {
		return nil
	}

	h := &minHeap[T]{
		less: func(a, b T) bool { return less(valueOf(a), valueOf(b)) },
	}

	var total int64

	rank := 0

	for _, c := range candidates {
		heap.Push(h, heapEntry[T]{item: c, rank: rank})
		rank++

		total += c.Size

		// Shed the smallest kept candidate while doing so still leaves
		// enough size to meet target; this keeps the heap bounded to
		// roughly the final answer's size instead of growing to all of
		// candidates.
		for h.Len() > 1 {
			root := h.entries[0]
			if total-root.item.Size < target {
				break
			}

			heap.Pop(h)

			total -= root.item.Size
		}
	}

	out := make([]Item[T], 0, h.Len())
	for _, e := range h.entries {
		out = append(out, e.item)
	}

	return out
}
