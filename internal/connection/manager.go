package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/pixelpanel/internal/store"
)

// Defaults applied by New when an option is zero.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultAckTimeout       = 5 * time.Second
	defaultInitialDelay     = time.Second
	defaultMaxDelay         = time.Minute

	// reconnectMultiplier grows the delay between reconnect attempts.
	reconnectMultiplier = 1.5

	// pongGrace is added to the ping interval before a silent device is
	// considered gone.
	pongGrace = 10 * time.Second
)

// errSuspended stops a reconnect loop after a deliberate disconnect.
var errSuspended = errors.New("connection: disconnected by request")

// StateSink receives everything the device pushes. *store.Store satisfies it.
type StateSink interface {
	SetConnectionState(cs store.ConnectionState) error
	AppendLog(payload map[string]any) (store.LogEntry, error)
	AppendSensor(payload map[string]any) (store.SensorReading, error)
	AppendButtonEvent(payload map[string]any) (store.ButtonEvent, error)
	SetSysInfo(payload map[string]any) (store.SystemInfo, error)
	SetConfig(snapshot map[string]any) (bool, error)
}

// Logger defines the logging interface used by the Manager.
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

// ReconnectPolicy bounds automatic reconnection. MaxAttempts of 0 retries
// until Disconnect or Close.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// Options configures a Manager.
type Options struct {
	// URL is the device WebSocket endpoint.
	URL string

	// Dialer defaults to WebSocketDialer.
	Dialer Dialer

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// AckTimeout bounds SubmitConfig while waiting for the config echo.
	AckTimeout time.Duration

	// PingInterval enables keepalive pings. A device that stays silent for
	// PingInterval plus a grace period is treated as disconnected.
	PingInterval time.Duration

	Reconnect ReconnectPolicy
	Logger    Logger
}

// Stats is a point-in-time view of the Manager counters.
type Stats struct {
	Connected         bool      `json:"connected"`
	ConnectedSince    time.Time `json:"connected_since,omitempty"`
	Reconnecting      bool      `json:"reconnecting"`
	FramesReceived    uint64    `json:"frames_received"`
	MalformedFrames   uint64    `json:"malformed_frames"`
	FramesSent        uint64    `json:"frames_sent"`
	Reconnects        uint64    `json:"reconnects"`
	ReconnectAttempts uint64    `json:"reconnect_attempts"`
	PendingAcks       int       `json:"pending_acks"`
}

type pendingAck struct {
	done chan error
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Manager owns the device session.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Frames are applied to the sink from a single receive goroutine, in
//     arrival order.
//   - Sink listeners must not call Connect, Disconnect, Reconnect or Close.
type Manager struct {
	opts   Options
	sink   StateSink
	logger Logger

	// stateMu pairs every session transition with its status update.
	stateMu sync.Mutex

	mu              sync.Mutex
	conn            Conn
	session         uint64
	sessionStop     chan struct{}
	connectedAt     time.Time
	suspended       bool
	pending         []*pendingAck
	reconnectCancel context.CancelFunc
	reconnectDone   chan struct{}

	writeMu sync.Mutex

	done *closeOnce
	wg   sync.WaitGroup

	framesReceived    atomic.Uint64
	malformedFrames   atomic.Uint64
	framesSent        atomic.Uint64
	reconnects        atomic.Uint64
	reconnectAttempts atomic.Uint64
}

// New creates a Manager. It does not dial; call Connect or Start.
func New(sink StateSink, opts Options) *Manager {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{HandshakeTimeout: opts.HandshakeTimeout}
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.Reconnect.InitialDelay <= 0 {
		opts.Reconnect.InitialDelay = defaultInitialDelay
	}
	if opts.Reconnect.MaxDelay < opts.Reconnect.InitialDelay {
		opts.Reconnect.MaxDelay = max(defaultMaxDelay, opts.Reconnect.InitialDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		opts:   opts,
		sink:   sink,
		logger: logger,
		done:   newCloseOnce(),
	}
}

// URL returns the device endpoint.
func (m *Manager) URL() string {
	return m.opts.URL
}

// Start connects, falling back to the background reconnect loop when the
// first dial fails. The dial error is returned for logging only; the
// Manager keeps trying.
func (m *Manager) Start(ctx context.Context) error {
	err := m.Connect(ctx)
	if err == nil || errors.Is(err, ErrClosed) {
		return err
	}
	m.stateMu.Lock()
	if m.current() == nil {
		m.setState(store.ConnectionState{ReconnectError: true})
	}
	m.stateMu.Unlock()
	m.startReconnect()
	return err
}

// Connect dials the device and starts the receive loop. It is a no-op when
// a session is already open. Any running reconnect loop is stopped first.
func (m *Manager) Connect(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()
	m.stopReconnect()

	if m.current() != nil {
		return nil
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", m.opts.URL, err)
	}
	if err := m.install(conn); err != nil {
		return err
	}
	m.logger.Info("connected to device", "url", m.opts.URL)
	return nil
}

// Reconnect drops the current session, if any, and dials again. A failed
// dial leaves the status at {false, true}; no background retry is started.
func (m *Manager) Reconnect(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	m.stopReconnect()

	m.stateMu.Lock()
	conn, pending := m.detach()
	m.stateMu.Unlock()
	if conn != nil {
		m.closeConn(conn)
	}
	failPending(pending, ErrConnectionLost)

	if err := m.Connect(ctx); err != nil {
		m.stateMu.Lock()
		if m.current() == nil {
			m.setState(store.ConnectionState{ReconnectError: true})
		}
		m.stateMu.Unlock()
		return err
	}
	return nil
}

// Disconnect closes the session deliberately. Pending submissions fail
// with ErrConnectionLost, any reconnect loop is cancelled, and the status
// becomes {false, false}. No reconnect follows until Connect, Start or
// Reconnect is called.
func (m *Manager) Disconnect() error {
	m.stateMu.Lock()
	m.mu.Lock()
	m.suspended = true
	conn, pending := m.detachLocked()
	m.mu.Unlock()
	m.setState(store.ConnectionState{})
	m.stateMu.Unlock()

	m.stopReconnect()
	if conn != nil {
		m.closeConn(conn)
		m.logger.Info("disconnected from device", "url", m.opts.URL)
	}
	failPending(pending, ErrConnectionLost)
	return nil
}

// Close disconnects and waits for every background goroutine to exit.
// Safe to call multiple times.
func (m *Manager) Close() error {
	m.done.Close()
	err := m.Disconnect()
	m.wg.Wait()
	return err
}

// IsConnected reports whether a session is open.
func (m *Manager) IsConnected() bool {
	return m.current() != nil
}

// HealthCheck returns ErrNotConnected while no session is open.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.isClosed() {
		return ErrClosed
	}
	if !m.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		Connected:    m.conn != nil,
		Reconnecting: m.reconnectCancel != nil,
		PendingAcks:  len(m.pending),
	}
	if m.conn != nil {
		s.ConnectedSince = m.connectedAt
	}
	m.mu.Unlock()

	s.FramesReceived = m.framesReceived.Load()
	s.MalformedFrames = m.malformedFrames.Load()
	s.FramesSent = m.framesSent.Load()
	s.Reconnects = m.reconnects.Load()
	s.ReconnectAttempts = m.reconnectAttempts.Load()
	return s
}

// Send writes {topic: payload} to the device.
func (m *Manager) Send(topic string, payload any) error {
	data, err := EncodeFrame(topic, payload)
	if err != nil {
		return err
	}
	conn := m.current()
	if conn == nil {
		return ErrNotConnected
	}
	return m.write(conn, data)
}

// SubmitConfig sends a full config snapshot and waits until the device
// echoes a config frame. Submissions are acknowledged in FIFO order by
// whichever config frame arrives next; see the package doc.
//
// Returns ErrNotConnected, ErrTimeout, ErrConnectionLost or the context
// error. A timeout does not mean the device rejected the snapshot; a later
// echo still updates the sink.
func (m *Manager) SubmitConfig(ctx context.Context, snapshot map[string]any) error {
	data, err := EncodeFrame(CommandSetConfig, snapshot)
	if err != nil {
		return err
	}

	ack := &pendingAck{done: make(chan error, 1)}
	m.mu.Lock()
	conn := m.conn
	if conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.pending = append(m.pending, ack)
	m.mu.Unlock()

	if err := m.write(conn, data); err != nil {
		m.removeAck(ack)
		return err
	}

	timer := time.NewTimer(m.opts.AckTimeout)
	defer timer.Stop()

	select {
	case err := <-ack.done:
		return err
	case <-timer.C:
		m.logger.Warn("device did not acknowledge config", "timeout", m.opts.AckTimeout)
		return m.abandon(ack, ErrTimeout)
	case <-ctx.Done():
		return m.abandon(ack, ctx.Err())
	}
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.HandshakeTimeout)
	defer cancel()
	return m.opts.Dialer.Dial(ctx, m.opts.URL)
}

// install adopts conn as the current session.
func (m *Manager) install(conn Conn) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.mu.Lock()
	switch {
	case m.isClosed():
		m.mu.Unlock()
		conn.Close()
		return ErrClosed
	case m.suspended:
		m.mu.Unlock()
		conn.Close()
		return errSuspended
	case m.conn != nil:
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.session++
	session := m.session
	stop := make(chan struct{})
	m.conn = conn
	m.sessionStop = stop
	m.connectedAt = time.Now()
	m.mu.Unlock()

	if m.opts.PingInterval > 0 {
		m.extendReadDeadline(conn)
		conn.SetPongHandler(func(string) error {
			m.extendReadDeadline(conn)
			return nil
		})
	}

	m.setState(store.ConnectionState{IsConnected: true})

	m.wg.Add(1)
	go m.receiveLoop(conn, session)
	if m.opts.PingInterval > 0 {
		m.wg.Add(1)
		go m.pingLoop(conn, stop)
	}
	return nil
}

func (m *Manager) current() Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

func (m *Manager) detach() (Conn, []*pendingAck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detachLocked()
}

// detachLocked ends the current session. m.mu must be held.
func (m *Manager) detachLocked() (Conn, []*pendingAck) {
	conn := m.conn
	m.conn = nil
	if m.sessionStop != nil {
		close(m.sessionStop)
		m.sessionStop = nil
	}
	pending := m.pending
	m.pending = nil
	return conn, pending
}

func (m *Manager) closeConn(conn Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(m.opts.WriteTimeout))
	conn.Close()
}

func (m *Manager) receiveLoop(conn Conn, session uint64) {
	defer m.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(session, err)
			return
		}
		if m.opts.PingInterval > 0 {
			m.extendReadDeadline(conn)
		}
		m.handleFrame(data)
	}
}

func (m *Manager) pingLoop(conn Conn, stop <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(m.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				m.logger.Debug("device ping failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (m *Manager) extendReadDeadline(conn Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(m.opts.PingInterval + pongGrace))
}

// handleDisconnect runs when the receive loop of session ends. Sessions
// already detached by Disconnect or Reconnect are ignored.
func (m *Manager) handleDisconnect(session uint64, cause error) {
	m.stateMu.Lock()
	m.mu.Lock()
	if session != m.session || m.conn == nil {
		m.mu.Unlock()
		m.stateMu.Unlock()
		return
	}
	conn, pending := m.detachLocked()
	m.mu.Unlock()

	conn.Close()
	m.setState(store.ConnectionState{ReconnectError: true})
	m.stateMu.Unlock()

	failPending(pending, ErrConnectionLost)
	m.logger.Warn("device connection lost", "url", m.opts.URL, "error", cause, "pending_acks", len(pending))
	m.startReconnect()
}

func (m *Manager) startReconnect() {
	m.mu.Lock()
	if m.reconnectCancel != nil || m.suspended || m.isClosed() {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.reconnectCancel = cancel
	m.reconnectDone = done
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(done)
		defer cancel()

		m.reconnectLoop(ctx)

		m.mu.Lock()
		if m.reconnectDone == done {
			m.reconnectCancel = nil
			m.reconnectDone = nil
		}
		m.mu.Unlock()
	}()
}

// stopReconnect cancels a running reconnect loop and waits for it to exit.
func (m *Manager) stopReconnect() {
	m.mu.Lock()
	cancel, done := m.reconnectCancel, m.reconnectDone
	m.reconnectCancel, m.reconnectDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Manager) reconnectLoop(ctx context.Context) {
	policy := m.opts.Reconnect

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialDelay
	eb.MaxInterval = policy.MaxDelay
	eb.Multiplier = reconnectMultiplier
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	var attempts int
	op := func() error {
		attempts++
		m.reconnectAttempts.Add(1)
		conn, err := m.dial(ctx)
		if err != nil {
			return err
		}
		if err := m.install(conn); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		m.logger.Warn("device reconnect attempt failed",
			"attempt", attempts,
			"retry_in", next,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		m.reconnects.Add(1)
		m.logger.Info("reconnected to device", "url", m.opts.URL, "attempts", attempts)
	case ctx.Err() != nil, errors.Is(err, ErrClosed), errors.Is(err, errSuspended):
		m.logger.Debug("device reconnect cancelled", "attempts", attempts)
	default:
		m.logger.Error("giving up reconnecting to device",
			"url", m.opts.URL,
			"attempts", attempts,
			"error", err,
		)
	}
}

// handleFrame decodes one inbound frame and applies it. Decoding happens
// before any sink update so a bad frame leaves no partial state.
func (m *Manager) handleFrame(data []byte) {
	m.framesReceived.Add(1)

	frame, err := DecodeFrame(data)
	if err != nil {
		m.malformedFrames.Add(1)
		m.logger.Warn("dropping malformed device frame", "error", err, "size", len(data))
		return
	}
	if len(frame.Unknown) > 0 {
		m.logger.Debug("ignoring unknown device topics", "topics", frame.Unknown)
	}

	for _, topic := range applyOrder {
		payload, ok := frame.Payloads[topic]
		if !ok {
			continue
		}
		if err := m.apply(topic, payload); err != nil {
			m.logger.Warn("applying device payload failed", "topic", string(topic), "error", err)
		}
	}
}

func (m *Manager) apply(topic Topic, payload map[string]any) error {
	var err error
	switch topic {
	case TopicLog:
		_, err = m.sink.AppendLog(payload)
	case TopicSensor:
		_, err = m.sink.AppendSensor(payload)
	case TopicButtons:
		_, err = m.sink.AppendButtonEvent(payload)
	case TopicSysInfo:
		_, err = m.sink.SetSysInfo(payload)
	case TopicConfig:
		if _, err = m.sink.SetConfig(payload); err == nil {
			m.resolveAck()
		}
	}
	return err
}

func (m *Manager) write(conn Conn, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// Closing wakes the receive loop, which runs the disconnect path.
		conn.Close()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	m.framesSent.Add(1)
	return nil
}

// resolveAck completes the oldest pending submission.
func (m *Manager) resolveAck() {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	ack := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	ack.done <- nil
}

// removeAck drops ack from the queue. Reports false if it was already
// resolved or failed.
func (m *Manager) removeAck(ack *pendingAck) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p == ack {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// abandon gives up on ack with cause unless it was settled concurrently,
// in which case the settled result wins.
func (m *Manager) abandon(ack *pendingAck, cause error) error {
	if m.removeAck(ack) {
		return cause
	}
	return <-ack.done
}

func (m *Manager) setState(cs store.ConnectionState) {
	if err := m.sink.SetConnectionState(cs); err != nil {
		m.logger.Error("updating connection state", "error", err)
	}
}

func (m *Manager) isClosed() bool {
	select {
	case <-m.done.Done():
		return true
	default:
		return false
	}
}

func failPending(pending []*pendingAck, err error) {
	for _, ack := range pending {
		ack.done <- err
	}
}
