package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConnection struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	closed   bool
	err      error
}

func (c *recordingConnection) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *recordingConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConnection) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func dialTo(conn Connection) Dialer {
	return func(context.Context) (Connection, error) {
		return conn, nil
	}
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	v, err := strconv.Atoi(s)
	require.NoError(t, err)
	return v
}

func TestSimulator_Next(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 6, 1, 12, 30, 45, 999, time.UTC)
	s := New(nil,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return fixed }),
		WithDeviceID("7"))

	for range 200 {
		r := s.Next()
		assert.Equal(t, "7", r.DeviceID)
		assert.Equal(t, "2024-06-01 12:30:45", r.DateTime)
		assert.InDelta(t, 0, atoi(t, r.Temperature), 50)
		assert.GreaterOrEqual(t, atoi(t, r.Humidity), 0)
		assert.LessOrEqual(t, atoi(t, r.Humidity), 100)
		assert.GreaterOrEqual(t, atoi(t, r.WindDirection), 0)
		assert.LessOrEqual(t, atoi(t, r.WindDirection), 360)
		assert.GreaterOrEqual(t, atoi(t, r.WindIntensity), 0)
		assert.LessOrEqual(t, atoi(t, r.WindIntensity), 100)
		assert.GreaterOrEqual(t, atoi(t, r.RainHeight), 0)
		assert.LessOrEqual(t, atoi(t, r.RainHeight), 50)
	}
}

func TestSimulator_Run(t *testing.T) {
	t.Parallel()

	conn := &recordingConnection{}
	s := New(dialTo(conn), WithInterval(5*time.Millisecond), WithTopic("test/data"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return conn.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
	assert.Equal(t, "test/data", conn.topics[0])

	var r Reading
	require.NoError(t, json.Unmarshal(conn.payloads[0], &r))
	assert.Equal(t, DefaultDeviceID, r.DeviceID)
	assert.Len(t, r.DateTime, len(dateTimeLayout))
}

func TestSimulator_RunPublishError(t *testing.T) {
	t.Parallel()

	conn := &recordingConnection{err: errors.New("broker gone")}
	s := New(dialTo(conn), WithInterval(time.Millisecond))

	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "broker gone")
	assert.True(t, conn.closed)
}

func TestSimulator_RunConnectRetries(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	conn := &recordingConnection{}
	dial := func(context.Context) (Connection, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(dial, WithInterval(time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return conn.count() > 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSimulator_RunConnectGivesUp(t *testing.T) {
	t.Parallel()

	dial := func(context.Context) (Connection, error) {
		return nil, errors.New("connection refused")
	}
	s := New(dial, WithMaxConnectTime(50*time.Millisecond))

	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}
