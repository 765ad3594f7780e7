package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultServiceName = "stageload"
	// DefaultEndpoint is an OTLP/HTTP collector as host:port
	DefaultEndpoint = "localhost:4318"
	// DefaultSampling applies to new root traces; scheduled runs start one per interval
	DefaultSampling = 0.05
)

// Config is the telemetry section of the stageload and Lambda configuration.
// Nothing is exported unless Enabled is set, and each signal is opted in separately.
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`
	// Endpoint is host:port; the exporters append /v1/traces and /v1/metrics
	Endpoint string `yaml:"endpoint,omitempty"`
	// Insecure sends OTLP over plain HTTP, for a collector sidecar
	Insecure bool           `yaml:"insecure,omitempty"`
	Tracing  *TracingConfig `yaml:"tracing,omitempty"`
	Metrics  *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls run and status API spans
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Sampling is the ratio of new root traces kept. Unset uses DefaultSampling;
	// 0 keeps only traces whose caller already sampled them.
	Sampling *float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls run, ingest and HTTP metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Prometheus also serves the metrics on the status API's /metrics route
	Prometheus bool `yaml:"prometheus,omitempty"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetInsecure returns the insecure flag
func (c *Config) GetInsecure() bool {
	return c.Insecure
}

// GetSampling returns the sampling ratio, or DefaultSampling when unset
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == nil {
		return DefaultSampling
	}
	return *c.Sampling
}

// Validate reports every problem in an enabled configuration at once
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error

	// otlp*http.WithEndpoint takes host:port and adds the scheme itself
	if strings.Contains(c.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("endpoint must be host:port without a scheme, got %q", c.Endpoint))
	}

	if c.Tracing != nil {
		if err := c.Tracing.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate validates the tracing configuration
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	if c.Sampling != nil && (*c.Sampling < 0 || *c.Sampling > 1.0) {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %g", *c.Sampling)
	}
	return nil
}

// Validate validates the metrics configuration
func (c *MetricsConfig) Validate() error {
	if c != nil && c.Prometheus && !c.Enabled {
		return errors.New("prometheus requires metrics to be enabled")
	}
	return nil
}
