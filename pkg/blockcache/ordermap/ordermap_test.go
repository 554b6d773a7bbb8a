package ordermap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/ordermap"
)

func lessInt(a, b int) bool { return a < b }

func unitSize(blockcache.Pair[string, int]) int64 { return 1 }

func pair(k string, v int) blockcache.Pair[string, int] {
	return blockcache.Pair[string, int]{Key: k, Value: v}
}

func TestOrderedMapDeduplicationScenario(t *testing.T) {
	t.Parallel()

	b := ordermap.New[string, int](3, lessInt, unitSize)

	rejected := b.Push([]blockcache.Pair[string, int]{pair("A", 4), pair("B", 2)})
	assert.Empty(t, rejected)

	rejected = b.Push([]blockcache.Pair[string, int]{pair("B", 4), pair("C", 3), pair("D", 4)})
	assert.Contains(t, rejected, pair("B", 4))
	assert.Contains(t, rejected, pair("D", 4))

	got, ok := b.Take("A")
	require.True(t, ok)
	assert.Equal(t, pair("A", 4), got)
}

func TestOrderedMapPopGreatest(t *testing.T) {
	t.Parallel()

	b := ordermap.New[string, int](10, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 4), pair("B", 2), pair("C", 3)})

	out := b.Pop(1)
	require.Len(t, out, 1)
	assert.Equal(t, pair("A", 4), out[0])
}

func TestOrderedMapCapacityBound(t *testing.T) {
	t.Parallel()

	b := ordermap.New[string, int](3, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2), pair("C", 3), pair("D", 4)})

	assert.LessOrEqual(t, b.Size(), b.Capacity())
}

func TestOrderedMapGetMutWriteBack(t *testing.T) {
	t.Parallel()

	b := ordermap.New[string, int](10, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1)})

	h, ok := b.GetMut("A")
	require.True(t, ok)
	h.Set(99)
	h.Release()

	got, ok := b.Take("A")
	require.True(t, ok)
	assert.Equal(t, 99, got.Value)
}

func TestOrderedMapPopBreaksValueTiesByGreaterKey(t *testing.T) {
	t.Parallel()

	b := ordermap.New[string, int](10, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 4), pair("D", 4), pair("B", 2)})

	out := b.Pop(1)
	require.Len(t, out, 1)
	assert.Equal(t, pair("D", 4), out[0])
	assert.True(t, b.Contains("A"))
}

func TestOrderedMapFlushIdempotent(t *testing.T) {
	t.Parallel()

	b := ordermap.New[string, int](10, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2)})

	var drained []blockcache.Pair[string, int]
	for p := range b.Flush() {
		drained = append(drained, p)
	}

	assert.Len(t, drained, 2)
	assert.Equal(t, int64(0), b.Size())

	var again int
	for range b.Flush() {
		again++
	}

	assert.Zero(t, again)
}
