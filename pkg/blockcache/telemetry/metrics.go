package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal   = "blockcache.requests.total"
	metricRequestDuration = "blockcache.request.duration.seconds"
	metricErrorsTotal     = "blockcache.errors.total"
	metricEvictionsTotal  = "blockcache.evictions.total"
	metricRejectionsTotal = "blockcache.rejections.total"
	metricSizeBytes       = "blockcache.size.bytes"

	attrOp     = "op"
	attrStatus = "status"
	attrTierAt = "tier"

	statusError = "error"
)

// durationBucketBoundaries covers 1us to 1s, appropriate for in-process
// cache operations rather than network requests.
var durationBucketBoundaries = []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1}

// CacheMetrics holds the OTel instruments for a decorated BuildingBlock:
// request rate/error/duration per operation, plus cache-specific gauges
// for evictions, rejections, and current size.
type CacheMetrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorsTotal     metric.Int64Counter
	evictionsTotal  metric.Int64Counter
	rejectionsTotal metric.Int64Counter
	sizeBytes       metric.Int64UpDownCounter
}

// NewCacheMetrics creates the cache metric instruments from the given
// meter.
func NewCacheMetrics(mt metric.Meter) (*CacheMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of building-block operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Building-block operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed building-block operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	evictions, err := mt.Int64Counter(metricEvictionsTotal,
		metric.WithDescription("Total number of entries evicted by pop"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEvictionsTotal, err)
	}

	rejections, err := mt.Int64Counter(metricRejectionsTotal,
		metric.WithDescription("Total number of entries rejected by push"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRejectionsTotal, err)
	}

	size, err := mt.Int64UpDownCounter(metricSizeBytes,
		metric.WithDescription("Current accounted size of the cache"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSizeBytes, err)
	}

	return &CacheMetrics{
		requestsTotal:   reqTotal,
		requestDuration: reqDuration,
		errorsTotal:     errTotal,
		evictionsTotal:  evictions,
		rejectionsTotal: rejections,
		sizeBytes:       size,
	}, nil
}

// RecordOp records one completed operation with its name, status, tier,
// and duration.
func (m *CacheMetrics) RecordOp(ctx context.Context, op, tier, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrTierAt, tier),
		attribute.String(attrStatus, status),
	)

	m.requestsTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
			attribute.String(attrTierAt, tier),
		))
	}
}

// RecordEvictions adds n to the evictions counter for tier.
func (m *CacheMetrics) RecordEvictions(ctx context.Context, tier string, n int64) {
	if n <= 0 {
		return
	}

	m.evictionsTotal.Add(ctx, n, metric.WithAttributes(attribute.String(attrTierAt, tier)))
}

// RecordRejections adds n to the rejections counter for tier.
func (m *CacheMetrics) RecordRejections(ctx context.Context, tier string, n int64) {
	if n <= 0 {
		return
	}

	m.rejectionsTotal.Add(ctx, n, metric.WithAttributes(attribute.String(attrTierAt, tier)))
}

// SetSize adjusts the size gauge for tier by delta (positive or negative).
func (m *CacheMetrics) SetSize(ctx context.Context, tier string, delta int64) {
	if delta == 0 {
		return
	}

	m.sizeBytes.Add(ctx, delta, metric.WithAttributes(attribute.String(attrTierAt, tier)))
}
