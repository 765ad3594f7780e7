package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	for name, opts := range map[string][]MeterProviderOption{
		"no config":        nil,
		"metrics disabled": {WithMetricsConfig(&MetricsConfig{Enabled: false})},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mp, err := NewMeterProvider(context.Background(), opts...)
			require.NoError(t, err)
			_, ok := mp.(noop.MeterProvider)
			assert.True(t, ok, "expected no-op meter provider")
		})
	}
}

func TestNewMeterProvider_RunMetricsWithPipelineResource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	registry := prometheus.NewRegistry()
	pipeline := Pipeline{Component: "serve", StateKey: "query_id", IncomingContainer: "iot-sensordata-messages"}

	mp, err := NewMeterProvider(ctx,
		WithMetricsConfig(&MetricsConfig{Enabled: true, Prometheus: true}),
		WithMetricReader(reader),
		WithPrometheusRegisterer(registry),
		WithMeterResourceAttributes(pipeline.Attributes()...),
	)
	require.NoError(t, err)
	sdkMP, ok := mp.(*sdkmetric.MeterProvider)
	require.True(t, ok, "expected SDK meter provider")
	t.Cleanup(func() { _ = sdkMP.Shutdown(context.Background()) })

	metrics, err := NewRunMetrics(mp)
	require.NoError(t, err)
	metrics.RecordObjectsStaged(ctx, 5)
	metrics.RecordObjectsCleared(ctx, 2)
	metrics.RecordLoadSubmission(ctx, true)
	metrics.RecordRunDuration(ctx, "clear_and_stage", 1500*time.Millisecond, true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	value, ok := rm.Resource.Set().Value(AttrPipelineKey)
	require.True(t, ok)
	assert.Equal(t, "query_id", value.AsString())

	got := collectByName(t, reader, RunMetricsMeterName)
	assert.Equal(t, int64(5), sumValue(t, got["stageload_objects_staged_total"]))
	assert.Equal(t, int64(2), sumValue(t, got["stageload_objects_cleared_total"]))

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "stageload_objects_staged_total")
	assert.Contains(t, body, "stageload_load_submissions_total")
	assert.Contains(t, body, "stageload_run_duration_seconds")
	assert.Contains(t, body, `stageload_pipeline_key="query_id"`)
	assert.Contains(t, body, `stageload_component="serve"`)
}

func TestNewMeterProvider_IngestMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp, err := NewMeterProvider(ctx,
		WithMetricsConfig(&MetricsConfig{Enabled: true}),
		WithMetricReader(reader),
		WithMeterResourceAttributes(Pipeline{Component: "sensor-queue"}.Attributes()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.(*sdkmetric.MeterProvider).Shutdown(context.Background()) })

	metrics, err := NewIngestMetrics(mp)
	require.NoError(t, err)
	for _, outcome := range []string{"inserted", "inserted", "duplicate", "invalid"} {
		metrics.RecordReading(ctx, outcome)
	}

	got := collectByName(t, reader, IngestMetricsMeterName)
	sum, ok := got["stageload_sensor_readings_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOutcome := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"inserted": 2, "duplicate": 1, "invalid": 1}, byOutcome)
}
