// Package telemetry provides OpenTelemetry instrumentation for the staged-load services.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RunMetricsMeterName is the name used for the coordinator run metrics meter
	RunMetricsMeterName = "github.com/iot-sensordata/stageload/coordinator"

	// IngestMetricsMeterName is the name used for the sensor ingest metrics meter
	IngestMetricsMeterName = "github.com/iot-sensordata/stageload/ingest"
)

// RunMetrics holds the OpenTelemetry instruments for coordinator runs
type RunMetrics struct {
	runDuration     metric.Float64Histogram
	objectsStaged   metric.Int64Counter
	objectsCleared  metric.Int64Counter
	loadSubmissions metric.Int64Counter
}

// NewRunMetrics creates a new RunMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRunMetrics(provider metric.MeterProvider) (*RunMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RunMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"stageload_run_duration_seconds",
		metric.WithDescription("Duration of coordinator runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	objectsStaged, err := meter.Int64Counter(
		"stageload_objects_staged_total",
		metric.WithDescription("Objects moved from the incoming container into staging"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	objectsCleared, err := meter.Int64Counter(
		"stageload_objects_cleared_total",
		metric.WithDescription("Objects removed from staging after a successful load"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	loadSubmissions, err := meter.Int64Counter(
		"stageload_load_submissions_total",
		metric.WithDescription("Load jobs submitted to the query engine"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		runDuration:     runDuration,
		objectsStaged:   objectsStaged,
		objectsCleared:  objectsCleared,
		loadSubmissions: loadSubmissions,
	}, nil
}

// RecordRunDuration records the duration of one coordinator run
func (m *RunMetrics) RecordRunDuration(ctx context.Context, decision string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("decision", decision),
		attribute.Bool("success", success),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordObjectsStaged adds n to the staged objects counter
func (m *RunMetrics) RecordObjectsStaged(ctx context.Context, n int) {
	if m == nil || m.objectsStaged == nil || n <= 0 {
		return
	}
	m.objectsStaged.Add(ctx, int64(n))
}

// RecordObjectsCleared adds n to the cleared objects counter
func (m *RunMetrics) RecordObjectsCleared(ctx context.Context, n int) {
	if m == nil || m.objectsCleared == nil || n <= 0 {
		return
	}
	m.objectsCleared.Add(ctx, int64(n))
}

// RecordLoadSubmission counts one load job submission attempt
func (m *RunMetrics) RecordLoadSubmission(ctx context.Context, success bool) {
	if m == nil || m.loadSubmissions == nil {
		return
	}
	m.loadSubmissions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// IngestMetrics holds the OpenTelemetry instruments for sensor reading ingestion
type IngestMetrics struct {
	readings metric.Int64Counter
}

// NewIngestMetrics creates a new IngestMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewIngestMetrics(provider metric.MeterProvider) (*IngestMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	readings, err := provider.Meter(IngestMetricsMeterName).Int64Counter(
		"stageload_sensor_readings_total",
		metric.WithDescription("Sensor readings processed by outcome"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}
	return &IngestMetrics{readings: readings}, nil
}

// RecordReading counts one processed reading. Outcome is one of inserted,
// duplicate, invalid or failed.
func (m *IngestMetrics) RecordReading(ctx context.Context, outcome string) {
	if m == nil || m.readings == nil {
		return
	}
	m.readings.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
