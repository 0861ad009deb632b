package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pixelpanel/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "pixelpanel-test",
		},
		QoS:         1,
		TopicPrefix: "pixelpanel",
		Reconnect: config.ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestTopics(t *testing.T) {
	topics := NewTopics("/home/pixelit/", "kitchen")

	tests := []struct {
		got  string
		want string
	}{
		{topics.Status(), "home/pixelit/kitchen/status"},
		{topics.Connection(), "home/pixelit/kitchen/connection"},
		{topics.Sensor(), "home/pixelit/kitchen/sensor"},
		{topics.Buttons(), "home/pixelit/kitchen/buttons"},
		{topics.SysInfo(), "home/pixelit/kitchen/sysinfo"},
		{topics.Log(), "home/pixelit/kitchen/log"},
		{topics.Config(), "home/pixelit/kitchen/config"},
		{topics.ConfigSet(), "home/pixelit/kitchen/config/set"},
		{topics.ConfigResult(), "home/pixelit/kitchen/config/result"},
		{topics.All(), "home/pixelit/kitchen/#"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}

	assert.Equal(t, "kitchen/status", NewTopics("", "kitchen").Status())
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "panel", Password: "secret"}

	opts := buildClientOptions(cfg)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
	assert.Equal(t, "pixelpanel-test", opts.ClientID)
	assert.Equal(t, "panel", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.Equal(t, 5*time.Second, opts.MaxReconnectInterval)

	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	opts = buildClientOptions(cfg)
	assert.Equal(t, "ssl://127.0.0.1:8883", opts.Servers[0].String())
	require.NotNil(t, opts.TLSConfig)
	assert.EqualValues(t, tlsMinVersion, opts.TLSConfig.MinVersion)
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("pixelpanel", "hall"))

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "pixelpanel/hall/status", opts.WillTopic)
	assert.Equal(t, []byte(StatusOffline), opts.WillPayload)
	assert.True(t, opts.WillRetained)
	assert.EqualValues(t, 1, opts.WillQos)
}

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig(), NewTopics("pixelpanel", "hall"))
	noop := func(string, []byte) error { return nil }

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)
	assert.ErrorIs(t, c.Publish("a/b", []byte("x"), 1, false), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe("a/b", 1, noop), ErrNotConnected)
	assert.ErrorIs(t, c.Unsubscribe("a/b"), ErrNotConnected)
	assert.Zero(t, c.SubscriptionCount())
	assert.NoError(t, c.Close())
}

func TestInputValidation(t *testing.T) {
	c := newClient(testConfig(), NewTopics("pixelpanel", "hall"))

	assert.ErrorIs(t, c.Publish("", nil, 1, false), ErrInvalidTopic)
	assert.ErrorIs(t, c.Publish("a", nil, 3, false), ErrInvalidQoS)
	assert.ErrorIs(t, c.Publish("a", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed)
	assert.ErrorIs(t, c.Subscribe("", 1, nil), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("a", 3, nil), ErrInvalidQoS)
	assert.ErrorIs(t, c.Subscribe("a", 1, nil), ErrSubscribeFailed)
	assert.ErrorIs(t, c.Unsubscribe(""), ErrInvalidTopic)

	err := c.PublishJSON("a", func() {}, false)
	assert.True(t, errors.Is(err, ErrPublishFailed))
}

func TestHealthCheckCancelled(t *testing.T) {
	c := newClient(testConfig(), NewTopics("pixelpanel", "hall"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.HealthCheck(ctx), context.Canceled)
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.warns = append(l.warns, msg) }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig(), NewTopics("pixelpanel", "hall"))
	logger := &recordingLogger{}
	c.SetLogger(logger)

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })
	failing(nil, fakeMessage{topic: "t"})
	assert.Len(t, logger.warns, 1)

	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })
	assert.NotPanics(t, func() { panicking(nil, fakeMessage{topic: "t"}) })
	assert.Len(t, logger.errors, 1)
}
