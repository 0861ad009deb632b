package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default retention limits for the append-only collections.
const (
	DefaultMaxLogs    = 500
	DefaultMaxSensors = 1000
	DefaultMaxButtons = 200
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	MaxLogs    int
	MaxSensors int
	MaxButtons int

	// Now stamps arriving records. Defaults to time.Now.
	Now func() time.Time

	Logger Logger
}

type subscription struct {
	id int
	fn Listener
}

// Store is the single owner of the device state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listeners run on the goroutine that performed the update, after the
//     lock is released, in subscription order.
//   - Deliveries for one slice never overlap and arrive in Seq order. For
//     slices whose updates replace state (connection, sysinfo, config) a
//     change overtaken by a newer one is dropped, so the last delivered
//     value is always the current one.
type Store struct {
	mu sync.RWMutex

	connection ConnectionState
	logs       []LogEntry
	sensors    []SensorReading
	buttons    []ButtonEvent
	sysInfo    *SystemInfo
	config     ConfigState

	maxLogs    int
	maxSensors int
	maxButtons int
	now        func() time.Time
	logger     Logger

	// seq is guarded by mu.
	seq map[Slice]uint64

	subMu    sync.RWMutex
	subs     map[Slice][]subscription
	nextID   int
	delivery map[Slice]*delivery
}

// delivery serializes listener calls for one slice.
type delivery struct {
	mu   sync.Mutex
	last uint64
}

// New creates an empty Store.
func New(opts Options) *Store {
	s := &Store{
		maxLogs:    opts.MaxLogs,
		maxSensors: opts.MaxSensors,
		maxButtons: opts.MaxButtons,
		now:        opts.Now,
		logger:     opts.Logger,
		seq:        make(map[Slice]uint64),
		subs:       make(map[Slice][]subscription),
		delivery:   make(map[Slice]*delivery),
	}
	for _, slice := range AllSlices() {
		s.delivery[slice] = &delivery{}
	}
	if s.maxLogs <= 0 {
		s.maxLogs = DefaultMaxLogs
	}
	if s.maxSensors <= 0 {
		s.maxSensors = DefaultMaxSensors
	}
	if s.maxButtons <= 0 {
		s.maxButtons = DefaultMaxButtons
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s
}

// Subscribe registers fn for changes to one slice and returns a function
// that removes it.
func (s *Store) Subscribe(slice Slice, fn Listener) func() {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[slice] = append(s.subs[slice], subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			list := s.subs[slice]
			for i, sub := range list {
				if sub.id == id {
					s.subs[slice] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscribeAll registers fn on every slice.
func (s *Store) SubscribeAll(fn Listener) func() {
	var unsubs []func()
	for _, slice := range AllSlices() {
		unsubs = append(unsubs, s.Subscribe(slice, fn))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// stamp assigns the next sequence number of c.Slice. Must be called with
// s.mu held.
func (s *Store) stamp(c Change) Change {
	s.seq[c.Slice]++
	c.Seq = s.seq[c.Slice]
	return c
}

// notify runs listeners for c.Slice. Must be called without s.mu held.
func (s *Store) notify(c Change) {
	d := s.delivery[c.Slice]
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.Seq <= d.last && c.Slice.replaces() {
		return
	}
	if c.Seq > d.last {
		d.last = c.Seq
	}

	s.subMu.RLock()
	list := make([]subscription, len(s.subs[c.Slice]))
	copy(list, s.subs[c.Slice])
	s.subMu.RUnlock()

	for _, sub := range list {
		s.invoke(sub.fn, c)
	}
}

func (s *Store) invoke(fn Listener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("store listener panicked", "slice", c.Slice, "panic", r)
		}
	}()
	fn(c)
}

// SetConnectionState replaces the connection status. Invalid combinations
// are rejected without mutation. Setting the current value is a no-op.
func (s *Store) SetConnectionState(cs ConnectionState) error {
	if !cs.Valid() {
		return ErrInvalidConnectionState
	}

	s.mu.Lock()
	if s.connection == cs {
		s.mu.Unlock()
		return nil
	}
	s.connection = cs
	c := s.stamp(Change{Slice: SliceConnection, Connection: &cs})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// AppendLog records a device log line.
func (s *Store) AppendLog(payload map[string]any) (LogEntry, error) {
	p, err := normalizePayload(payload)
	if err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{
		ID:      uuid.NewString(),
		Time:    s.now(),
		Payload: p,
	}
	entry.Function, _ = p["function"].(string)
	entry.Message, _ = p["message"].(string)

	s.mu.Lock()
	s.logs = appendBounded(s.logs, entry, s.maxLogs)
	out := entry.copy()
	c := s.stamp(Change{Slice: SliceLogs, Log: &out})
	s.mu.Unlock()

	s.notify(c)
	return entry.copy(), nil
}

// AppendSensor records a sensor push.
func (s *Store) AppendSensor(payload map[string]any) (SensorReading, error) {
	p, err := normalizePayload(payload)
	if err != nil {
		return SensorReading{}, err
	}

	reading := SensorReading{Time: s.now(), Values: p}

	s.mu.Lock()
	s.sensors = appendBounded(s.sensors, reading, s.maxSensors)
	out := reading.copy()
	c := s.stamp(Change{Slice: SliceSensors, Sensor: &out})
	s.mu.Unlock()

	s.notify(c)
	return reading.copy(), nil
}

// AppendButtonEvent records a button push.
func (s *Store) AppendButtonEvent(payload map[string]any) (ButtonEvent, error) {
	p, err := normalizePayload(payload)
	if err != nil {
		return ButtonEvent{}, err
	}

	ev := ButtonEvent{Time: s.now(), Payload: p}

	s.mu.Lock()
	s.buttons = appendBounded(s.buttons, ev, s.maxButtons)
	out := ev.copy()
	c := s.stamp(Change{Slice: SliceButtons, Button: &out})
	s.mu.Unlock()

	s.notify(c)
	return ev.copy(), nil
}

// SetSysInfo replaces the system info.
func (s *Store) SetSysInfo(payload map[string]any) (SystemInfo, error) {
	p, err := normalizePayload(payload)
	if err != nil {
		return SystemInfo{}, err
	}

	info := SystemInfo{Time: s.now(), Payload: p}

	s.mu.Lock()
	stored := info
	s.sysInfo = &stored
	out := info.copy()
	c := s.stamp(Change{Slice: SliceSysInfo, SysInfo: &out})
	s.mu.Unlock()

	s.notify(c)
	return info.copy(), nil
}

// SetConfig applies a configuration confirmed by the device.
//
// The confirmed snapshot is replaced and any proposal discarded
// (last-confirmed-wins). Re-applying the current confirmed snapshot while
// no proposal is pending changes nothing and notifies nobody. Reports
// whether state changed.
func (s *Store) SetConfig(snapshot map[string]any) (bool, error) {
	snap, err := Normalize(snapshot)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	cur := s.config
	if cur.Confirmed != nil && cur.Confirmed.Equal(snap) && !cur.HasProposal && !cur.Stale {
		s.mu.Unlock()
		return false, nil
	}
	if cur.HasProposal && !cur.Proposed.Equal(snap) {
		s.logger.Info("device config replaced pending proposal", "changed_keys", len(cur.Proposed.Diff(snap)))
	}
	s.config = ConfigState{
		Confirmed:   snap,
		ConfirmedAt: s.now(),
	}
	out := s.config.copy()
	c := s.stamp(Change{Slice: SliceConfig, Config: &out})
	s.mu.Unlock()

	s.notify(c)
	return true, nil
}

// RestoreConfig seeds the confirmed snapshot from persistence. It is marked
// stale until the device echoes a config. Ignored once a config is known.
func (s *Store) RestoreConfig(snapshot map[string]any, confirmedAt time.Time) error {
	snap, err := Normalize(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.config.Confirmed != nil {
		s.mu.Unlock()
		return nil
	}
	s.config = ConfigState{Confirmed: snap, ConfirmedAt: confirmedAt, Stale: true}
	out := s.config.copy()
	c := s.stamp(Change{Slice: SliceConfig, Config: &out})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// ProposeConfig records local edits on top of the current proposal, or on
// top of the confirmed snapshot when none is pending. It returns the full
// proposed snapshot.
func (s *Store) ProposeConfig(changes map[string]any) (Snapshot, error) {
	norm, err := Normalize(changes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	base := s.config.Confirmed
	if s.config.HasProposal {
		base = s.config.Proposed
	}
	if base == nil {
		s.mu.Unlock()
		return nil, ErrNoConfig
	}
	proposed := base.Merge(norm)
	s.config.Proposed = proposed
	s.config.ProposedAt = s.now()
	s.config.HasProposal = true
	out := s.config.copy()
	c := s.stamp(Change{Slice: SliceConfig, Config: &out})
	s.mu.Unlock()

	s.notify(c)
	return proposed.DeepCopy(), nil
}

// DiscardProposal drops pending local edits. Reports whether one existed.
func (s *Store) DiscardProposal() bool {
	s.mu.Lock()
	if !s.config.HasProposal {
		s.mu.Unlock()
		return false
	}
	s.config.Proposed = nil
	s.config.ProposedAt = time.Time{}
	s.config.HasProposal = false
	out := s.config.copy()
	c := s.stamp(Change{Slice: SliceConfig, Config: &out})
	s.mu.Unlock()

	s.notify(c)
	return true
}

// Connection returns the connection status.
func (s *Store) Connection() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// Logs returns the retained log lines, oldest first.
func (s *Store) Logs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LogEntry, len(s.logs))
	for i, e := range s.logs {
		out[i] = e.copy()
	}
	return out
}

// Sensors returns the retained sensor readings, oldest first.
func (s *Store) Sensors() []SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SensorReading, len(s.sensors))
	for i, r := range s.sensors {
		out[i] = r.copy()
	}
	return out
}

// LatestSensor returns the newest sensor reading.
func (s *Store) LatestSensor() (SensorReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sensors) == 0 {
		return SensorReading{}, false
	}
	return s.sensors[len(s.sensors)-1].copy(), true
}

// Buttons returns the retained button events, oldest first.
func (s *Store) Buttons() []ButtonEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ButtonEvent, len(s.buttons))
	for i, b := range s.buttons {
		out[i] = b.copy()
	}
	return out
}

// SysInfo returns the latest system info.
func (s *Store) SysInfo() (SystemInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sysInfo == nil {
		return SystemInfo{}, false
	}
	return s.sysInfo.copy(), true
}

// Config returns the configuration state.
func (s *Store) Config() ConfigState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.copy()
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Connection: s.connection,
		Logs:       make([]LogEntry, len(s.logs)),
		Sensors:    make([]SensorReading, len(s.sensors)),
		Buttons:    make([]ButtonEvent, len(s.buttons)),
		Config:     s.config.copy(),
	}
	for i, e := range s.logs {
		st.Logs[i] = e.copy()
	}
	for i, r := range s.sensors {
		st.Sensors[i] = r.copy()
	}
	for i, b := range s.buttons {
		st.Buttons[i] = b.copy()
	}
	if s.sysInfo != nil {
		info := s.sysInfo.copy()
		st.SysInfo = &info
	}
	return st
}

// appendBounded appends v and drops the oldest entries beyond limit.
func appendBounded[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	if over := len(list) - limit; over > 0 {
		copy(list, list[over:])
		clear(list[len(list)-over:])
		list = list[:limit]
	}
	return list
}

func (e LogEntry) copy() LogEntry {
	e.Payload = e.Payload.DeepCopy()
	return e
}

func (r SensorReading) copy() SensorReading {
	r.Values = r.Values.DeepCopy()
	return r
}

func (b ButtonEvent) copy() ButtonEvent {
	b.Payload = b.Payload.DeepCopy()
	return b
}

func (i SystemInfo) copy() SystemInfo {
	i.Payload = i.Payload.DeepCopy()
	return i
}

func (c ConfigState) copy() ConfigState {
	c.Confirmed = c.Confirmed.DeepCopy()
	c.Proposed = c.Proposed.DeepCopy()
	return c
}
