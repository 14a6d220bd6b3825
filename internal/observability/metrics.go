// Package observability wires the OTel metric instruments and the
// health and metrics HTTP endpoints.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "devpulse.requests.total"
	metricRequestDuration  = "devpulse.request.duration.seconds"
	metricErrorsTotal      = "devpulse.errors.total"
	metricInflightRequests = "devpulse.inflight.requests"

	metricEventsFetched   = "devpulse.events.fetched.total"
	metricSnapshotBuilds  = "devpulse.snapshot.builds.total"
	metricSnapshotSeconds = "devpulse.snapshot.build.duration.seconds"

	attrOp     = "op"
	attrStatus = "status"
	attrSource = "source"

	// StatusOK and StatusError are the request status attribute values.
	StatusOK    = "ok"
	StatusError = "error"
)

// requestBucketBoundaries covers 1ms to 30s: snapshot reads are
// sub-millisecond, forced rebuilds over a large corpus are not.
var requestBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// buildBucketBoundaries covers 10ms to 600s for snapshot rebuilds.
var buildBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600}

// REDMetrics holds the Rate, Error, Duration instruments for the
// HTTP API.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", requestBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// PipelineMetrics holds the instruments for the fetch and snapshot
// build pipeline.
type PipelineMetrics struct {
	eventsFetched  metric.Int64Counter
	snapshotBuilds metric.Int64Counter
	buildDuration  metric.Float64Histogram
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		eventsFetched:  b.counter(metricEventsFetched, "Total number of raw events fetched", "{event}"),
		snapshotBuilds: b.counter(metricSnapshotBuilds, "Total number of snapshot rebuilds", "{build}"),
		buildDuration:  b.histogram(metricSnapshotSeconds, "Snapshot rebuild duration in seconds", "s", buildBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordFetched records raw events retrieved from one source
// ("github" or "jira").
func (pm *PipelineMetrics) RecordFetched(ctx context.Context, source string, count int) {
	pm.eventsFetched.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrSource, source)))
}

// RecordBuild records a completed snapshot rebuild.
func (pm *PipelineMetrics) RecordBuild(ctx context.Context, duration time.Duration) {
	pm.snapshotBuilds.Add(ctx, 1)
	pm.buildDuration.Record(ctx, duration.Seconds())
}
