// Package mqtt forwards orchestrator lifecycle events to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Config describes the broker connection.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Client wraps the Paho client and implements ports.EventPublisher.
type Client struct {
	client paho.Client
	qos    byte
	mu     sync.Mutex
}

// NewClient creates a client but does not connect.
func NewClient(cfg Config) *Client {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return NewFromClient(paho.NewClient(opts), cfg.QoS)
}

// NewFromClient wraps an existing Paho client.
func NewFromClient(client paho.Client, qos byte) *Client {
	return &Client{client: client, qos: qos}
}

// Connect attempts to connect to the broker without blocking indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("connect: %w", ErrTimeout)
	}
	return token.Error()
}

// Publish sends payload to topic. It waits for the broker until ctx is done
// or the publish timeout elapses, whichever comes first.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker, waiting up to one second for in-flight work.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Disconnect(1000)
	return nil
}
