package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/pixelpanel/internal/infrastructure/mqtt"
	"github.com/nerrad567/pixelpanel/internal/panel"
	"github.com/nerrad567/pixelpanel/internal/store"
	"github.com/nerrad567/pixelpanel/internal/validation"
)

const (
	// mirrorQueueSize bounds messages waiting for the broker.
	mirrorQueueSize = 256

	// applyTimeout bounds a config change received over MQTT.
	applyTimeout = 30 * time.Second
)

// Publisher is the part of the MQTT client the Mirror uses.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ConfigApplier applies config changes received over MQTT.
type ConfigApplier interface {
	Apply(ctx context.Context, changes map[string]any) (panel.Result, error)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// MirrorStats counts queue outcomes.
type MirrorStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// Mirror publishes store changes to MQTT.
type Mirror struct {
	pub     Publisher
	topics  mqtt.Topics
	qos     byte
	applier ConfigApplier
	logger  Logger

	queue chan message

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewMirror creates a Mirror. applier may be nil to ignore config/set.
func NewMirror(pub Publisher, topics mqtt.Topics, qos byte, applier ConfigApplier, logger Logger) *Mirror {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Mirror{
		pub:     pub,
		topics:  topics,
		qos:     qos,
		applier: applier,
		logger:  logger,
		queue:   make(chan message, mirrorQueueSize),
	}
}

// Attach subscribes to every slice of s and returns the detach function.
func (m *Mirror) Attach(s *store.Store) func() {
	return s.SubscribeAll(m.onChange)
}

// Republish queues the retained state of s. Call it after every broker
// (re)connect so retained topics survive a broker restart.
func (m *Mirror) Republish(s *store.Store) {
	st := s.Snapshot()
	m.onChange(store.Change{Slice: store.SliceConnection, Connection: &st.Connection})
	if st.SysInfo != nil {
		m.onChange(store.Change{Slice: store.SliceSysInfo, SysInfo: st.SysInfo})
	}
	if st.Config.Confirmed != nil && !st.Config.Stale {
		m.onChange(store.Change{Slice: store.SliceConfig, Config: &st.Config})
	}
}

func (m *Mirror) onChange(c store.Change) {
	var (
		topic    string
		body     any
		retained bool
	)
	switch c.Slice {
	case store.SliceConnection:
		topic, body, retained = m.topics.Connection(), c.Connection, true
	case store.SliceSensors:
		topic, body = m.topics.Sensor(), c.Sensor.Values
	case store.SliceButtons:
		topic, body = m.topics.Buttons(), c.Button.Payload
	case store.SliceSysInfo:
		topic, body, retained = m.topics.SysInfo(), c.SysInfo.Payload, true
	case store.SliceLogs:
		topic, body = m.topics.Log(), c.Log
	case store.SliceConfig:
		// Proposals and restored snapshots stay local; only what the
		// device itself reported is mirrored.
		if c.Config.Confirmed == nil || c.Config.Stale {
			return
		}
		topic, body, retained = m.topics.Config(), c.Config.Confirmed, true
	default:
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		m.logger.Error("encoding mirror payload", "slice", string(c.Slice), "error", err)
		return
	}
	m.enqueue(message{topic: topic, payload: payload, retained: retained})
}

func (m *Mirror) enqueue(msg message) {
	select {
	case m.queue <- msg:
	default:
		m.dropped.Add(1)
		m.logger.Warn("mqtt mirror queue full, dropping message", "topic", msg.topic)
	}
}

// Run publishes queued messages until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.queue:
			m.publish(msg)
		}
	}
}

func (m *Mirror) publish(msg message) {
	if err := m.pub.Publish(msg.topic, msg.payload, m.qos, msg.retained); err != nil {
		m.failed.Add(1)
		m.logger.Debug("mqtt mirror publish failed", "topic", msg.topic, "error", err)
		return
	}
	m.published.Add(1)
}

// Stats returns the queue counters.
func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		Published: m.published.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
	}
}

// ConfigResult is published on the config/result topic.
type ConfigResult struct {
	OK     bool                `json:"ok"`
	Error  string              `json:"error,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
	Time   time.Time           `json:"time"`
}

// HandleConfigSet is the MQTT handler for the config/set topic. The payload
// is a JSON object of changed keys. The outcome is published on
// config/result; malformed payloads are reported there too.
func (m *Mirror) HandleConfigSet(_ string, payload []byte) error {
	if m.applier == nil {
		return nil
	}

	var changes map[string]any
	if err := json.Unmarshal(payload, &changes); err != nil || changes == nil {
		m.reportResult(ConfigResult{Error: "payload must be a JSON object"})
		return errors.New("telemetry: config/set payload is not a JSON object")
	}

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	_, err := m.applier.Apply(ctx, changes)
	if err != nil {
		res := ConfigResult{Error: err.Error()}
		var verr *validation.Error
		if errors.As(err, &verr) {
			res.Error = "validation failed"
			res.Fields = verr.Fields
		}
		m.reportResult(res)
		return nil
	}
	m.logger.Info("config applied from mqtt", "keys", len(changes))
	m.reportResult(ConfigResult{OK: true})
	return nil
}

func (m *Mirror) reportResult(res ConfigResult) {
	res.Time = time.Now().UTC()
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	m.enqueue(message{topic: m.topics.ConfigResult(), payload: payload})
}
