package telemetry

import (
	"testing"

	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	assert.Equal(t, "stageload", cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, "localhost:4318", cfg.GetEndpoint())
	assert.False(t, cfg.GetInsecure())

	cfg = Config{ServiceName: "stageload-ingest", ServiceVersion: "v1.4.0", Endpoint: "otel:4318", Insecure: true}
	assert.Equal(t, "stageload-ingest", cfg.GetServiceName())
	assert.Equal(t, "v1.4.0", cfg.GetServiceVersion())
	assert.Equal(t, "otel:4318", cfg.GetEndpoint())
	assert.True(t, cfg.GetInsecure())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *TracingConfig
		expected float64
	}{
		{name: "nil config", config: nil, expected: DefaultSampling},
		{name: "unset", config: &TracingConfig{Enabled: true}, expected: DefaultSampling},
		{name: "explicit zero is kept", config: &TracingConfig{Enabled: true, Sampling: ptr.Float64(0)}, expected: 0},
		{name: "explicit ratio", config: &TracingConfig{Enabled: true, Sampling: ptr.Float64(0.25)}, expected: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.config.GetSampling())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      *Config
		errContains []string
	}{
		{name: "nil config", config: nil},
		{
			name: "disabled config skips validation",
			config: &Config{
				Endpoint: "http://collector:4318",
				Tracing:  &TracingConfig{Enabled: true, Sampling: ptr.Float64(7)},
			},
		},
		{
			name: "serve config",
			config: &Config{
				Enabled:  true,
				Endpoint: "collector:4318",
				Tracing:  &TracingConfig{Enabled: true, Sampling: ptr.Float64(0.1)},
				Metrics:  &MetricsConfig{Enabled: true, Prometheus: true},
			},
		},
		{
			name: "zero sampling is valid",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: ptr.Float64(0)},
			},
		},
		{
			name:        "endpoint with scheme",
			config:      &Config{Enabled: true, Endpoint: "https://collector:4318"},
			errContains: []string{"without a scheme"},
		},
		{
			name: "sampling out of range",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: ptr.Float64(1.5)},
			},
			errContains: []string{"tracing:", "between 0.0 and 1.0"},
		},
		{
			name: "out of range sampling ignored when tracing is disabled",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Sampling: ptr.Float64(-1)},
			},
		},
		{
			name: "prometheus without metrics",
			config: &Config{
				Enabled: true,
				Metrics: &MetricsConfig{Prometheus: true},
			},
			errContains: []string{"metrics:", "prometheus requires metrics"},
		},
		{
			name: "all problems are reported",
			config: &Config{
				Enabled:  true,
				Endpoint: "http://collector:4318",
				Tracing:  &TracingConfig{Enabled: true, Sampling: ptr.Float64(-0.1)},
				Metrics:  &MetricsConfig{Prometheus: true},
			},
			errContains: []string{"without a scheme", "tracing:", "metrics:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if len(tt.errContains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.errContains {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestConfig_YAML(t *testing.T) {
	t.Parallel()

	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(`
enabled: true
endpoint: collector:4318
tracing:
  enabled: true
  sampling: 0
metrics:
  enabled: true
  prometheus: true
`), &cfg))

	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Tracing.Sampling)
	assert.Equal(t, 0.0, cfg.Tracing.GetSampling())
	assert.True(t, cfg.Metrics.Prometheus)
}
