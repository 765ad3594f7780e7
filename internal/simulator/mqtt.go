package simulator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// QoS is the delivery guarantee for published readings
	QoS byte = 1

	keepAlive      = 60 * time.Second
	connectTimeout = 10 * time.Second
	publishTimeout = 10 * time.Second
	quiesceMillis  = 250
)

// TLSConfig names the PEM files for mutual TLS with the broker
type TLSConfig struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

// Load builds a client TLS configuration pinned to TLS 1.2 or later
func (c TLSConfig) Load() (*tls.Config, error) {
	caPEM, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", c.CAFile)
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// MQTTDialer returns a Dialer connecting to broker (for example
// ssl://example.iot.eu-west-2.amazonaws.com:8883) as clientID
func MQTTDialer(broker, clientID string, tlsCfg *tls.Config) (Dialer, error) {
	if broker == "" {
		return nil, ErrBrokerRequired
	}
	if clientID == "" {
		clientID = DefaultClientID
	}

	return func(ctx context.Context) (Connection, error) {
		opts := mqtt.NewClientOptions().
			AddBroker(broker).
			SetClientID(clientID).
			SetKeepAlive(keepAlive).
			SetConnectTimeout(connectTimeout).
			SetAutoReconnect(true)
		if tlsCfg != nil {
			opts.SetTLSConfig(tlsCfg)
		}

		client := mqtt.NewClient(opts)
		if err := wait(ctx, client.Connect(), connectTimeout); err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", broker, err)
		}
		return &mqttConnection{client: client}, nil
	}, nil
}

type mqttConnection struct {
	client mqtt.Client
}

func (c *mqttConnection) Publish(ctx context.Context, topic string, payload []byte) error {
	return wait(ctx, c.client.Publish(topic, QoS, false, payload), publishTimeout)
}

func (c *mqttConnection) Close() {
	c.client.Disconnect(quiesceMillis)
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
