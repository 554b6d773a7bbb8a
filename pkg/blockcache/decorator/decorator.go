// Package decorator wraps any blockcache.BuildingBlock with telemetry:
// every call is timed and counted through telemetry.CacheMetrics, logged
// through a slog.Logger, and wrapped in a trace span. The decorator never
// changes Push/Pop/Take semantics; it only observes them.
package decorator

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/telemetry"
)

const (
	opContains     = "contains"
	opTake         = "take"
	opTakeMultiple = "take_multiple"
	opPop          = "pop"
	opPush         = "push"
	opFlush        = "flush"

	statusOK   = "ok"
	statusMiss = "miss"
)

// Block wraps an inner BuildingBlock with metrics, logging, and tracing.
// It implements blockcache.BuildingBlock itself, so it composes like any
// other block: a decorated block can be nested inside a combinator, or a
// combinator can be decorated as a whole.
type Block[K comparable, V any] struct {
	inner   blockcache.BuildingBlock[K, V]
	metrics *telemetry.CacheMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	tier    string
}

var _ blockcache.BuildingBlock[string, int] = (*Block[string, int])(nil)

// New wraps inner, reporting metrics tagged with tier (e.g. "front",
// "bucket-2", "root") through metrics, logging through logger, and
// creating spans through tracer. A nil tracer disables span creation; a
// nil logger disables logging; metrics must not be nil.
func New[K comparable, V any](
	inner blockcache.BuildingBlock[K, V],
	metrics *telemetry.CacheMetrics,
	logger *slog.Logger,
	tracer trace.Tracer,
	tier string,
) *Block[K, V] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Block[K, V]{inner: inner, metrics: metrics, logger: logger, tracer: tracer, tier: tier}
}

// start opens a span for op if a tracer was configured, otherwise returns
// a no-op span via the noop tracer semantics built into the trace API.
func (b *Block[K, V]) start(ctx context.Context, op string) (context.Context, trace.Span) {
	if b.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return b.tracer.Start(ctx, "blockcache."+op)
}

// finish records the op's duration and status against metrics and closes
// out the span with a matching status code.
func (b *Block[K, V]) finish(ctx context.Context, span trace.Span, op string, started time.Time, status string) {
	b.metrics.RecordOp(ctx, op, b.tier, metricStatus(status), time.Since(started))

	if status == statusOK || status == statusMiss {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, status)
	}
}

// metricStatus maps the decorator's fine-grained statuses (ok, miss) onto
// the two statuses CacheMetrics.RecordOp understands; a miss is not an
// error, just an absent key.
func metricStatus(status string) string {
	if status == statusOK || status == statusMiss {
		return statusOK
	}

	return status
}

// Capacity implements blockcache.BuildingBlock. It is not instrumented: it
// is a pure accessor with no failure mode worth recording.
func (b *Block[K, V]) Capacity() int64 { return b.inner.Capacity() }

// Size implements blockcache.BuildingBlock, same rationale as Capacity.
func (b *Block[K, V]) Size() int64 { return b.inner.Size() }

// Contains implements blockcache.BuildingBlock.
func (b *Block[K, V]) Contains(key K) bool {
	started := time.Now()
	ctx, span := b.start(context.Background(), opContains)
	defer span.End()

	found := b.inner.Contains(key)
	b.finish(ctx, span, opContains, started, statusOK)

	return found
}

// Take implements blockcache.BuildingBlock.
func (b *Block[K, V]) Take(key K) (blockcache.Pair[K, V], bool) {
	started := time.Now()
	ctx, span := b.start(context.Background(), opTake)
	defer span.End()

	p, ok := b.inner.Take(key)

	status := statusOK
	if !ok {
		status = statusMiss
	}

	b.finish(ctx, span, opTake, started, status)

	return p, ok
}

// TakeMultiple implements blockcache.BuildingBlock.
func (b *Block[K, V]) TakeMultiple(keys *[]K) []blockcache.Pair[K, V] {
	started := time.Now()
	ctx, span := b.start(context.Background(), opTakeMultiple)
	defer span.End()

	taken := b.inner.TakeMultiple(keys)
	b.finish(ctx, span, opTakeMultiple, started, statusOK)
	b.logger.Debug("take_multiple", "tier", b.tier, "found", len(taken))

	return taken
}

// Pop implements blockcache.BuildingBlock, recording the number of
// entries evicted against the eviction counter in addition to the op
// counters every method records.
func (b *Block[K, V]) Pop(n int64) []blockcache.Pair[K, V] {
	started := time.Now()
	ctx, span := b.start(context.Background(), opPop)
	defer span.End()

	popped := b.inner.Pop(n)

	b.metrics.RecordEvictions(ctx, b.tier, int64(len(popped)))
	b.finish(ctx, span, opPop, started, statusOK)
	b.logger.Info("pop", "tier", b.tier, "requested", n, "evicted", len(popped))

	return popped
}

// Push implements blockcache.BuildingBlock, recording rejected entries
// against the rejection counter and the net size delta against the size
// gauge.
func (b *Block[K, V]) Push(entries []blockcache.Pair[K, V]) []blockcache.Pair[K, V] {
	started := time.Now()
	ctx, span := b.start(context.Background(), opPush)
	defer span.End()

	before := b.inner.Size()
	rejected := b.inner.Push(entries)
	after := b.inner.Size()

	b.metrics.RecordRejections(ctx, b.tier, int64(len(rejected)))
	b.metrics.SetSize(ctx, b.tier, after-before)
	b.finish(ctx, span, opPush, started, statusOK)

	if len(rejected) > 0 {
		b.logger.Warn("push_rejected", "tier", b.tier, "offered", len(entries), "rejected", len(rejected))
	}

	return rejected
}

// Flush implements blockcache.BuildingBlock. The span covers only the act
// of obtaining the iterator; consuming it runs outside any span since the
// caller controls its pace and may break out early.
func (b *Block[K, V]) Flush() iter.Seq[blockcache.Pair[K, V]] {
	started := time.Now()
	ctx, span := b.start(context.Background(), opFlush)

	inner := b.inner.Flush()
	b.finish(ctx, span, opFlush, started, statusOK)
	span.End()

	return func(yield func(blockcache.Pair[K, V]) bool) {
		var n int

		for p := range inner {
			n++

			if !yield(p) {
				break
			}
		}

		b.logger.Debug("flush", "tier", b.tier, "drained", n)
	}
}
