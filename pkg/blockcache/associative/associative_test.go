package associative_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/array"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/associative"
)

func lessInt(a, b int) bool { return a < b }

func unitSize(blockcache.Pair[string, int]) int64 { return 1 }

// constantHasher always routes to bucket 0, letting tests drive every key
// into the same bucket deliberately (scenario 3).
type constantHasher struct{}

func (constantHasher) Hash(string) uint64            { return 0 }
func (constantHasher) Clone() associative.Hasher[string] { return constantHasher{} }

func pair(k string, v int) blockcache.Pair[string, int] {
	return blockcache.Pair[string, int]{Key: k, Value: v}
}

func TestAssociativeBalanceScenario(t *testing.T) {
	t.Parallel()

	buckets := []blockcache.BuildingBlock[string, int]{
		array.New[string, int](2, lessInt, unitSize),
		array.New[string, int](2, lessInt, unitSize),
	}

	b := associative.New[string, int](buckets, constantHasher{}, lessInt)

	entries := make([]blockcache.Pair[string, int], 0, 8)
	for i := 0; i < 8; i++ {
		entries = append(entries, pair(string(rune('A'+i)), i))
	}

	rejected := b.Push(entries)
	assert.Len(t, rejected, 6)
	assert.Equal(t, int64(2), b.Size())
}

func TestAssociativeRoutingAndCapacity(t *testing.T) {
	t.Parallel()

	buckets := []blockcache.BuildingBlock[string, int]{
		array.New[string, int](5, lessInt, unitSize),
		array.New[string, int](5, lessInt, unitSize),
		array.New[string, int](5, lessInt, unitSize),
	}

	hasher := associative.StringHasher()
	b := associative.New[string, int](buckets, hasher, lessInt)

	b.Push([]blockcache.Pair[string, int]{pair("alpha", 1), pair("beta", 2), pair("gamma", 3)})

	assert.True(t, b.Contains("alpha"))
	got, ok := b.Take("alpha")
	require.True(t, ok)
	assert.Equal(t, 1, got.Value)

	assert.LessOrEqual(t, b.Size(), b.Capacity())
}

func TestAssociativeBucketSizesBalanceAfterPop(t *testing.T) {
	t.Parallel()

	buckets := []blockcache.BuildingBlock[string, int]{
		array.New[string, int](10, lessInt, unitSize),
		array.New[string, int](10, lessInt, unitSize),
	}

	hasher := associative.StringHasher()
	b := associative.New[string, int](buckets, hasher, lessInt)

	entries := make([]blockcache.Pair[string, int], 0, 20)
	for i := 0; i < 20; i++ {
		entries = append(entries, pair(string(rune('a'+i))+"-key", i))
	}

	b.Push(entries)
	sizesBefore := b.BucketSizes()
	assert.Equal(t, int64(20), sizesBefore[0]+sizesBefore[1])

	b.Pop(4)
	assert.LessOrEqual(t, b.Size(), int64(16))
}

func TestAssociativeFlushDrainsAllBuckets(t *testing.T) {
	t.Parallel()

	buckets := []blockcache.BuildingBlock[string, int]{
		array.New[string, int](5, lessInt, unitSize),
		array.New[string, int](5, lessInt, unitSize),
	}

	hasher := associative.StringHasher()
	b := associative.New[string, int](buckets, hasher, lessInt)
	b.Push([]blockcache.Pair[string, int]{pair("alpha", 1), pair("beta", 2)})

	count := 0
	for range b.Flush() {
		count++
	}

	assert.Equal(t, 2, count)
	assert.Equal(t, int64(0), b.Size())
}
