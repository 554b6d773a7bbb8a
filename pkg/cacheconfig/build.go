package cacheconfig

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/array"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/associative"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/batchchain"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/bytestream"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/decorator"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/exclusive"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/ordermap"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/sequential"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/telemetry"
)

// Entry is the concrete (K,V) pair every topology built by this package
// stores: a string key and an opaque byte-slice value. A declarative
// loader cannot know a caller's value type ahead of time, so the topology
// layer settles on the one shape general enough for file caches, HTTP
// response bodies, and serialized application objects alike; callers
// needing a richer V compose blockcache engines directly instead of going
// through cacheconfig.
type Entry = blockcache.Pair[string, []byte]

// Telemetry bundles the providers Build decorates nodes with when the
// topology's telemetry.enabled is true. A nil Telemetry, or one with a
// nil Metrics, disables decoration regardless of the config flag.
type Telemetry struct {
	Metrics *telemetry.CacheMetrics
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// sizeFn weighs an entry by its value length; keys are assumed small and
// fixed relative to the cached payload.
func sizeFn(p Entry) int64 { return int64(len(p.Value)) }

// lessFn orders values by length: the longest byte slices are evicted
// first under Pop's "greatest value first" rule. Ties retain engine
// iteration order.
func lessFn(a, b []byte) bool { return len(a) < len(b) }

// Build constructs the BuildingBlock tree described by cfg.Root. When
// cfg.Telemetry.Enabled and tel is non-nil, every node is wrapped in
// pkg/blockcache/decorator, tagged with its configured (or kind-derived)
// tier name.
func Build(cfg *Config, tel *Telemetry) (blockcache.BuildingBlock[string, []byte], error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w", ErrMissingChild)
	}

	decorate := cfg.Telemetry.Enabled && tel != nil && tel.Metrics != nil

	return buildNode(&cfg.Root, decorate, tel)
}

func buildNode(n *Node, decorate bool, tel *Telemetry) (blockcache.BuildingBlock[string, []byte], error) {
	blk, err := buildRaw(n, decorate, tel)
	if err != nil {
		return nil, err
	}

	if !decorate {
		return blk, nil
	}

	return decorator.New[string, []byte](blk, tel.Metrics, tel.Logger, tel.Tracer, tierFor(n)), nil
}

func buildRaw(n *Node, decorate bool, tel *Telemetry) (blockcache.BuildingBlock[string, []byte], error) {
	switch n.Kind {
	case KindArray:
		return buildArray(n)
	case KindOrderedMap:
		return buildOrderedMap(n)
	case KindByteStream:
		return buildByteStream(n)
	case KindAssociative:
		return buildAssociative(n)
	case KindExclusive:
		return buildExclusive(n, decorate, tel)
	case KindSequential:
		return buildSequential(n, decorate, tel)
	case KindBatchChain:
		return buildBatchChain(n, decorate, tel)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
}

func buildArray(n *Node) (blockcache.BuildingBlock[string, []byte], error) {
	capacity, err := parseCapacity(n.Capacity)
	if err != nil {
		return nil, err
	}

	return array.New[string, []byte](capacity, lessFn, sizeFn), nil
}

func buildOrderedMap(n *Node) (blockcache.BuildingBlock[string, []byte], error) {
	capacity, err := parseCapacity(n.Capacity)
	if err != nil {
		return nil, err
	}

	return ordermap.New[string, []byte](capacity, lessFn, sizeFn), nil
}

func buildByteStream(n *Node) (blockcache.BuildingBlock[string, []byte], error) {
	capacity, err := parseCapacity(n.Capacity)
	if err != nil {
		return nil, err
	}

	opts := make([]bytestream.Option[string, []byte], 0, 1)
	if n.Compress {
		opts = append(opts, bytestream.WithCompression[string, []byte]())
	}

	return bytestream.New[string, []byte](
		capacity,
		bytestream.MemStreamFactory{},
		bytestream.GobCodec[string, []byte]{},
		lessFn,
		sizeFn,
		opts...,
	), nil
}

func buildAssociative(n *Node) (blockcache.BuildingBlock[string, []byte], error) {
	capacity, err := parseCapacity(n.Capacity)
	if err != nil {
		return nil, err
	}

	buckets := n.Buckets
	if buckets <= 0 {
		buckets = defaultBucketCount
	}

	perBucket := capacity / int64(buckets)
	if perBucket <= 0 {
		perBucket = 1
	}

	inner := make([]blockcache.BuildingBlock[string, []byte], buckets)
	for i := range inner {
		inner[i] = array.New[string, []byte](perBucket, lessFn, sizeFn)
	}

	opts := make([]associative.Option[string, []byte], 0, 1)
	if n.BloomFilter {
		expected := n.ExpectedEntries
		if expected == 0 {
			expected = uint(perBucket)
		}

		opts = append(opts, associative.WithBloomPrefilter[string, []byte](
			expected, defaultBloomFalsePositiveRate, func(s string) []byte { return []byte(s) },
		))
	}

	return associative.New[string, []byte](inner, associative.StringHasher(), lessFn, opts...), nil
}

func buildExclusive(n *Node, decorate bool, tel *Telemetry) (blockcache.BuildingBlock[string, []byte], error) {
	if n.Front == nil || n.Back == nil {
		return nil, fmt.Errorf("%w", ErrMissingFrontBack)
	}

	front, err := buildNode(n.Front, decorate, tel)
	if err != nil {
		return nil, fmt.Errorf("cacheconfig: build front: %w", err)
	}

	back, err := buildNode(n.Back, decorate, tel)
	if err != nil {
		return nil, fmt.Errorf("cacheconfig: build back: %w", err)
	}

	return exclusive.New[string, []byte](front, back), nil
}

func buildSequential(n *Node, decorate bool, tel *Telemetry) (blockcache.BuildingBlock[string, []byte], error) {
	if n.Child == nil {
		return nil, fmt.Errorf("%w", ErrMissingChild)
	}

	child, err := buildNode(n.Child, decorate, tel)
	if err != nil {
		return nil, fmt.Errorf("cacheconfig: build child: %w", err)
	}

	return sequential.New[string, []byte](child), nil
}

func buildBatchChain(n *Node, decorate bool, tel *Telemetry) (blockcache.BuildingBlock[string, []byte], error) {
	if len(n.Chain) == 0 {
		return nil, fmt.Errorf("%w", ErrMissingChain)
	}

	chain := make([]blockcache.BuildingBlock[string, []byte], len(n.Chain))

	for i := range n.Chain {
		blk, err := buildNode(&n.Chain[i], decorate, tel)
		if err != nil {
			return nil, fmt.Errorf("cacheconfig: build chain[%d]: %w", i, err)
		}

		chain[i] = blk
	}

	return batchchain.New[string, []byte](chain), nil
}

// tierFor names a node for logging/metrics: its configured Tier, or its
// Kind when Tier was left blank.
func tierFor(n *Node) string {
	if n.Tier != "" {
		return n.Tier
	}

	return n.Kind
}
