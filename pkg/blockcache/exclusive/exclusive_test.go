package exclusive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/array"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/exclusive"
)

func lessInt(a, b int) bool { return a < b }

func unitSize(blockcache.Pair[string, int]) int64 { return 1 }

func pair(k string, v int) blockcache.Pair[string, int] {
	return blockcache.Pair[string, int]{Key: k, Value: v}
}

func TestExclusivePopRoutingScenario(t *testing.T) {
	t.Parallel()

	front := array.New[string, int](2, lessInt, unitSize)
	back := array.New[string, int](2, lessInt, unitSize)
	b := exclusive.New[string, int](front, back)

	rejected := b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2), pair("C", 3), pair("D", 4)})
	assert.Empty(t, rejected)

	first := b.Pop(1)
	assert.Len(t, first, 1)

	for i := 0; i < 3; i++ {
		b.Pop(1)
	}

	assert.Equal(t, int64(0), b.Size())
}

func TestExclusiveFlushScenario(t *testing.T) {
	t.Parallel()

	front := array.New[string, int](2, lessInt, unitSize)
	back := array.New[string, int](2, lessInt, unitSize)
	b := exclusive.New[string, int](front, back)

	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2)})

	var drained []blockcache.Pair[string, int]
	for p := range b.Flush() {
		drained = append(drained, p)
	}

	assert.Len(t, drained, 2)
	assert.Equal(t, int64(0), b.Size())
}

func TestExclusiveCapacityIsSumOfTiers(t *testing.T) {
	t.Parallel()

	front := array.New[string, int](2, lessInt, unitSize)
	back := array.New[string, int](3, lessInt, unitSize)
	b := exclusive.New[string, int](front, back)

	assert.Equal(t, int64(5), b.Capacity())
}

func TestExclusiveContainsChecksBothTiers(t *testing.T) {
	t.Parallel()

	front := array.New[string, int](1, lessInt, unitSize)
	back := array.New[string, int](1, lessInt, unitSize)
	b := exclusive.New[string, int](front, back)

	b.Push([]blockcache.Pair[string, int]{pair("A", 1), pair("B", 2)})

	assert.True(t, b.Contains("A"))
	assert.True(t, b.Contains("B"))
	assert.False(t, b.Contains("Z"))
}
