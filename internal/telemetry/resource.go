package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attribute keys identifying the pipeline a process serves
const (
	AttrComponent         = attribute.Key("stageload.component")
	AttrPipelineKey       = attribute.Key("stageload.pipeline.key")
	AttrIncomingContainer = attribute.Key("stageload.container.incoming")
	AttrStagingContainer  = attribute.Key("stageload.container.staging")
)

// Pipeline describes the process for resource attributes. Empty fields are omitted.
type Pipeline struct {
	// Component is the binary or function, such as serve or sensor-ingest
	Component string
	// StateKey is the run state record key, which names the pipeline
	StateKey          string
	IncomingContainer string
	StagingContainer  string
}

// Attributes returns the non-empty fields as resource attributes
func (p Pipeline) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	add := func(key attribute.Key, value string) {
		if value != "" {
			attrs = append(attrs, key.String(value))
		}
	}
	add(AttrComponent, p.Component)
	add(AttrPipelineKey, p.StateKey)
	add(AttrIncomingContainer, p.IncomingContainer)
	add(AttrStagingContainer, p.StagingContainer)
	return attrs
}

// newResource builds the resource shared by the tracer and meter providers.
// resource.New is used instead of merging with resource.Default to avoid
// schema URL conflicts.
func newResource(ctx context.Context, serviceName, serviceVersion string, extra []attribute.KeyValue) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	}, extra...)

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
