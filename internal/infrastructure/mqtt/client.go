package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/pixelpanel/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for one device topic tree.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect  func()
	callbackMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho goroutines and should not block for long.
//
// Parameters:
//   - topic: the concrete topic the message arrived on, e.g. "pixelit/kitchen/config/set"
//   - payload: the raw message body, JSON for every topic this module serves
//
// Returns:
//   - error: logged with the topic; the message is acknowledged regardless
type MessageHandler func(topic string, payload []byte) error

// newClient builds an unconnected Client.
func newClient(cfg config.MQTTConfig, topics Topics) *Client {
	opts := buildClientOptions(cfg)
	configureLWT(opts, topics)

	c := &Client{
		cfg:           cfg,
		topics:        topics,
		subscriptions: make(map[string]subscription),
	}
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect establishes a connection to the broker for one device topic tree.
//
// It performs the following setup:
//  1. Builds paho options from cfg (broker URL, credentials, TLS, reconnect delays)
//  2. Registers the "offline" last will on topics.Status()
//  3. Connects, waiting at most defaultConnectTimeout
//  4. Publishes "online" (retained) and restores subscriptions on every connect
//
// Parameters:
//   - cfg: the mqtt section of the service config
//   - topics: the device topic tree, see NewTopics
//
// Returns:
//   - *Client: connected client ready for Publish and Subscribe
//   - error: wraps ErrConnectionFailed when the broker is unreachable or refuses
func Connect(cfg config.MQTTConfig, topics Topics) (*Client, error) {
	c := newClient(cfg, topics)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; IsConnected must be true
	// as soon as Connect returns.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// Topics returns the topic tree the client serves.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, StatusOnline)

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close disconnects from the broker.
//
// It performs:
//  1. Publishes a retained "offline" on the status topic while connected
//  2. Waits defaultDisconnectQuiesce for in-flight messages
//  3. Disconnects and marks the client down
//
// Returns:
//   - error: always nil; a nil or never-connected client is a no-op
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, StatusOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	return nil
}

// HealthCheck reports the broker link for /health.
//
// Parameters:
//   - ctx: bounds the check; a done context fails immediately
//
// Returns:
//   - error: nil while connected, ErrNotConnected while paho is reconnecting
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on every (re)connect, after
// subscriptions are restored. Use it to republish retained state.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adds panic recovery and error logging to a MessageHandler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
