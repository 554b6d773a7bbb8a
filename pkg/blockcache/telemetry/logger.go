// Package telemetry provides the OTel-aware logging and metrics that wrap
// a BuildingBlock from the outside (see pkg/blockcache/decorator); nothing
// in the core engines or combinators imports this package, matching spec
// §5's "no callback or continuation-passing API is exposed from the core".
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrCache   = "cache"
	attrTier    = "tier"
)

// TracingHandler is an slog.Handler that injects the active span's trace
// and span IDs, plus the cache/tier identifying a particular block, into
// every log record. Cache/tier attributes are pre-attached at construction
// so they stay at the top level even across WithGroup calls.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner, tagging every record with cacheName
// (the root component's name) and tier (which level of the topology
// produced the record, e.g. "front", "back", "bucket-3").
func NewTracingHandler(inner slog.Handler, cacheName, tier string) *TracingHandler {
	attrs := []slog.Attr{slog.String(attrCache, cacheName)}
	if tier != "" {
		attrs = append(attrs, slog.String(attrTier, tier))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes from the span context, then
// delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a new TracingHandler with additional attributes on the
// inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a new TracingHandler with a group prefix on the inner
// handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
