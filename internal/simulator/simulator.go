// Package simulator emulates a weather station that publishes one random
// environmental reading per interval over MQTT with mutual TLS.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTopic is the topic the ingest rule subscribes to
	DefaultTopic = "sensor/data"
	// DefaultInterval is the delay between readings
	DefaultInterval = 5 * time.Second
	// DefaultClientID identifies the simulated station to the broker
	DefaultClientID = "Env_Sensor_1"
	// DefaultDeviceID is the device id carried in each reading
	DefaultDeviceID = "1"

	dateTimeLayout = "2006-01-02 15:04:05"
)

// ErrBrokerRequired is returned when no broker URL is configured
var ErrBrokerRequired = errors.New("broker URL is required")

// Connection publishes payloads to an MQTT broker
type Connection interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// Dialer opens a Connection
type Dialer func(ctx context.Context) (Connection, error)

// Reading is the wire form the stations publish. Values are sent as decimal strings.
type Reading struct {
	DeviceID      string `json:"deviceid"`
	DateTime      string `json:"datetime"`
	Temperature   string `json:"temperature"`
	Humidity      string `json:"humidity"`
	WindDirection string `json:"windDirection"`
	WindIntensity string `json:"windIntensity"`
	RainHeight    string `json:"rainHeight"`
}

// Simulator publishes random readings until its context is cancelled
type Simulator struct {
	dial       Dialer
	topic      string
	interval   time.Duration
	deviceID   string
	rng        *rand.Rand
	now        func() time.Time
	maxConnect time.Duration
}

// Option configures a Simulator
type Option func(*Simulator)

// WithTopic sets the publish topic
func WithTopic(topic string) Option {
	return func(s *Simulator) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithInterval sets the delay between readings
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDeviceID sets the device id carried in each reading
func WithDeviceID(id string) Option {
	return func(s *Simulator) {
		if id != "" {
			s.deviceID = id
		}
	}
}

// WithRand sets the random source
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		s.rng = rng
	}
}

// WithClock sets the clock used for reading timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// WithMaxConnectTime bounds how long connecting is retried
func WithMaxConnectTime(d time.Duration) Option {
	return func(s *Simulator) {
		s.maxConnect = d
	}
}

// New creates a Simulator that connects through dial
func New(dial Dialer, opts ...Option) *Simulator {
	s := &Simulator{
		dial:       dial,
		topic:      DefaultTopic,
		interval:   DefaultInterval,
		deviceID:   DefaultDeviceID,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)), // #nosec G404 -- simulated sensor values
		now:        time.Now,
		maxConnect: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns a random reading stamped with the current time
func (s *Simulator) Next() Reading {
	between := func(lo, hi int) string {
		return strconv.Itoa(lo + s.rng.IntN(hi-lo+1))
	}
	return Reading{
		DeviceID:      s.deviceID,
		DateTime:      s.now().Format(dateTimeLayout),
		Temperature:   between(-50, 50),
		Humidity:      between(0, 100),
		WindDirection: between(0, 360),
		WindIntensity: between(0, 100),
		RainHeight:    between(0, 50),
	}
}

// Run connects and publishes one reading per interval. It returns nil when ctx
// is cancelled and an error when connecting or publishing fails.
func (s *Simulator) Run(ctx context.Context) error {
	conn, err := backoff.Retry(ctx, func() (Connection, error) {
		return s.dial(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(s.maxConnect),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Broker connection failed, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()
	slog.Info("Simulator connected", "topic", s.topic, "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Simulator stopped")
			return nil
		case <-ticker.C:
			reading := s.Next()
			payload, err := json.Marshal(reading)
			if err != nil {
				return fmt.Errorf("failed to encode reading: %w", err)
			}
			if err := conn.Publish(ctx, s.topic, payload); err != nil {
				return fmt.Errorf("failed to publish reading: %w", err)
			}
			slog.Debug("Reading published", "topic", s.topic, "datetime", reading.DateTime)
		}
	}
}
