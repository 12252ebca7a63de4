package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

func newTestMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider()

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	red.RecordRequest(context.Background(), "tree_page", observability.StatusOK, 2*time.Millisecond)
	red.RecordRequest(context.Background(), "tree_move", observability.StatusError, time.Millisecond)

	rm := collectMetrics(t, reader)

	require.NotNil(t, findMetric(rm, "treestore.requests.total"))
	require.NotNil(t, findMetric(rm, "treestore.request.duration.seconds"))

	errTotal := findMetric(rm, "treestore.errors.total")
	require.NotNil(t, errTotal)

	sum, ok := errTotal.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider()

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := red.TrackInflight(context.Background(), "export")

	inflight := findMetric(collectMetrics(t, reader), "treestore.inflight.requests")
	require.NotNil(t, inflight)

	sum, ok := inflight.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)

	done()

	inflight = findMetric(collectMetrics(t, reader), "treestore.inflight.requests")
	sum, ok = inflight.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}

func TestStoreMetrics(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider()

	storeMetrics, err := observability.NewStoreMetrics(mp.Meter("test"))
	require.NoError(t, err)

	storeMetrics.RecordMutation("insert", nil)
	storeMetrics.RecordMutation("insert", nil)
	storeMetrics.RecordMutation("remove", errors.New("not found"))
	storeMetrics.SetNodeCount(12)

	rm := collectMetrics(t, reader)

	mutations := findMetric(rm, "treestore.mutations.total")
	require.NotNil(t, mutations)

	sum, ok := mutations.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, point := range sum.DataPoints {
		total += point.Value
	}

	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2)

	nodes := findMetric(rm, "treestore.nodes")
	require.NotNil(t, nodes)

	gauge, ok := nodes.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(12), gauge.DataPoints[0].Value)
}
