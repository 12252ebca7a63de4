package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "treestore.requests.total"
	metricRequestDuration  = "treestore.request.duration.seconds"
	metricErrorsTotal      = "treestore.errors.total"
	metricInflightRequests = "treestore.inflight.requests"
	metricMutationsTotal   = "treestore.mutations.total"
	metricNodes            = "treestore.nodes"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK labels a successful request or mutation.
	StatusOK = "ok"
	// StatusError labels a failed request or mutation.
	StatusError = "error"
)

// durationBucketBoundaries covers 100µs to 5s; every store operation is in
// memory, so only export of large forests reaches the upper buckets.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// REDMetrics holds the Rate, Error, Duration instruments for API operations.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a finished request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight counter and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// StoreMetrics records forest mutations and the current node count. It
// satisfies forest.Metrics.
type StoreMetrics struct {
	mutations metric.Int64Counter
	nodes     metric.Int64Gauge
}

// NewStoreMetrics creates the store instruments from mt.
func NewStoreMetrics(mt metric.Meter) (*StoreMetrics, error) {
	mutations, err := mt.Int64Counter(metricMutationsTotal,
		metric.WithDescription("Forest mutations by operation and outcome"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMutationsTotal, err)
	}

	nodes, err := mt.Int64Gauge(metricNodes,
		metric.WithDescription("Number of nodes in the forest"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricNodes, err)
	}

	return &StoreMetrics{mutations: mutations, nodes: nodes}, nil
}

// RecordMutation counts one mutation attempt.
func (sm *StoreMetrics) RecordMutation(op string, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}

	sm.mutations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	))
}

// SetNodeCount records the node count after a mutation.
func (sm *StoreMetrics) SetNodeCount(count int) {
	sm.nodes.Record(context.Background(), int64(count))
}
