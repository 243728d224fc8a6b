package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newManualMeter returns a meter whose measurements can be collected on demand.
func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter construction in short mode")
	}
	original := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(original) })

	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
		Insecure:          true,
		MetricInterval:    time.Hour,
	}, nil)
	require.NoError(t, err)

	assert.True(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	// Shutdown may report the unreachable collector; it must not hang.
	_ = mp.Shutdown(ctx)
}

func TestCounter(t *testing.T) {
	reader, mp := newManualMeter(t)
	ctx := context.Background()

	counter, err := telemetry.NewCounter(mp.Meter("test"), "documents_total", "Documents", "{documents}")
	require.NoError(t, err)

	counter.Add(ctx, 2, telemetry.AttrRecordKind.String("INVOICE"))
	counter.Inc(ctx, telemetry.AttrRecordKind.String("INVOICE"))
	counter.Inc(ctx, telemetry.AttrRecordKind.String("QUOTE"))

	sum, ok := collect(t, reader)["documents_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byKind := map[string]int64{}
	for _, dp := range sum.DataPoints {
		kind, _ := dp.Attributes.Value(telemetry.AttrRecordKind)
		byKind[kind.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"INVOICE": 3, "QUOTE": 1}, byKind)
}

func TestHistogram(t *testing.T) {
	reader, mp := newManualMeter(t)
	ctx := context.Background()

	h, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{
		Name:        "render_seconds",
		Description: "Render time",
		Unit:        "s",
		Boundaries:  telemetry.RenderDurationBuckets,
	})
	require.NoError(t, err)

	h.Record(ctx, 0.02)
	h.RecordDuration(ctx, 1500*time.Millisecond)

	hist, ok := collect(t, reader)["render_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.52, hist.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, telemetry.RenderDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestHistogram_DefaultBoundaries(t *testing.T) {
	_, mp := newManualMeter(t)

	h, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{Name: "plain", Unit: "1"})
	require.NoError(t, err)
	h.Record(context.Background(), 3, attribute.String("k", "v"))
}

func TestBucketsAreSorted(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"http":   telemetry.HTTPDurationBuckets,
		"render": telemetry.RenderDurationBuckets,
		"pages":  telemetry.PageCountBuckets,
		"size":   telemetry.DocumentSizeBuckets,
	} {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, buckets)
			for i := 1; i < len(buckets); i++ {
				assert.Less(t, buckets[i-1], buckets[i])
			}
		})
	}
}
