package array_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/array"
)

func lessInt(a, b int) bool { return a < b }

func unitSize(blockcache.Pair[string, int]) int64 { return 1 }

func pair(k string, v int) blockcache.Pair[string, int] {
	return blockcache.Pair[string, int]{Key: k, Value: v}
}

func TestArrayOrderingScenario(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](3, lessInt, unitSize)

	rejected := b.Push([]blockcache.Pair[string, int]{pair("A", 4), pair("B", 2), pair("C", 3)})
	assert.Empty(t, rejected)

	assert.Equal(t, []blockcache.Pair[string, int]{pair("A", 4)}, b.Pop(1))
	assert.Equal(t, []blockcache.Pair[string, int]{pair("C", 3)}, b.Pop(1))
	assert.Equal(t, []blockcache.Pair[string, int]{pair("B", 2)}, b.Pop(1))
	assert.Empty(t, b.Pop(1))
}

func TestArrayCapacityBound(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](3, lessInt, unitSize)

	rejected := b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2), pair("C", 3), pair("D", 4)})
	assert.LessOrEqual(t, b.Size(), b.Capacity())
	assert.NotEmpty(t, rejected)
}

func TestArrayTakeAndContains(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](5, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2)})

	assert.True(t, b.Contains("A"))

	got, ok := b.Take("A")
	require.True(t, ok)
	assert.Equal(t, pair("A", 1), got)
	assert.False(t, b.Contains("A"))

	_, ok = b.Take("Z")
	assert.False(t, ok)
}

func TestArrayTakeMultipleCompactsKeys(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](5, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2), pair("C", 3)})

	keys := []string{"A", "Z", "C"}
	taken := b.TakeMultiple(&keys)

	assert.Len(t, taken, 2)
	assert.Equal(t, []string{"Z"}, keys)
}

func TestArrayFlushEmptiesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](5, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2)})

	var drained []blockcache.Pair[string, int]
	for p := range b.Flush() {
		drained = append(drained, p)
	}

	assert.Len(t, drained, 2)
	assert.Equal(t, int64(0), b.Size())

	var again []blockcache.Pair[string, int]
	for p := range b.Flush() {
		again = append(again, p)
	}

	assert.Empty(t, again)
}

func TestArrayGetAndGetMut(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](5, lessInt, unitSize)
	b.Push([]blockcache.Pair[string, int]{pair("A", 1)})

	h, ok := b.Get("A")
	require.True(t, ok)
	assert.Equal(t, 1, h.Value())
	h.Release()

	mh, ok := b.GetMut("A")
	require.True(t, ok)
	mh.Set(42)
	mh.Release()

	got, _ := b.Take("A")
	assert.Equal(t, 42, got.Value)
}

func TestArrayPushConservation(t *testing.T) {
	t.Parallel()

	b := array.New[string, int](3, lessInt, unitSize)

	before := b.Size()
	incoming := []blockcache.Pair[string, int]{pair("A", 1), pair("B", 2)}

	var wIn int64
	for range incoming {
		wIn++
	}

	rejected := b.Push(incoming)

	var wOut int64
	for range rejected {
		wOut++
	}

	assert.Equal(t, before+wIn, b.Size()+wOut)
}
