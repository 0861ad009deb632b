package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nerrad567/pixelpanel/internal/auth"
	"github.com/nerrad567/pixelpanel/internal/connection"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/config"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/logging"
	"github.com/nerrad567/pixelpanel/internal/panel"
	"github.com/nerrad567/pixelpanel/internal/reference"
	"github.com/nerrad567/pixelpanel/internal/store"
)

const testPassword = "operator-password"

// fakeLink stands in for the connection manager.
type fakeLink struct {
	mu           sync.Mutex
	connected    bool
	reconnectErr error
	reconnects   int
	disconnects  int
}

func (l *fakeLink) URL() string { return "ws://pixelit.test:81" }

func (l *fakeLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) Stats() connection.Stats {
	return connection.Stats{Connected: l.IsConnected(), FramesReceived: 7}
}

func (l *fakeLink) Reconnect(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reconnects++
	if l.reconnectErr != nil {
		return l.reconnectErr
	}
	l.connected = true
	return nil
}

func (l *fakeLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
	l.connected = false
	return nil
}

// echoDevice confirms submissions by writing them back into the store,
// or fails them with err.
type echoDevice struct {
	mu    sync.Mutex
	store *store.Store
	err   error
}

func (d *echoDevice) SubmitConfig(_ context.Context, snapshot map[string]any) error {
	d.mu.Lock()
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = d.store.SetConfig(snapshot)
	return err
}

func (d *echoDevice) IsConnected() bool { return true }

func (d *echoDevice) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

type fakeHistory struct {
	logs []store.LogEntry
}

func (h *fakeHistory) RecentLogs(_ context.Context, limit int) ([]store.LogEntry, error) {
	out := make([]store.LogEntry, 0, limit)
	for i := 0; i < len(h.logs) && i < limit; i++ {
		out = append(out, h.logs[i])
	}
	return out, nil
}

type failingChecker struct{}

func (failingChecker) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

type testEnv struct {
	srv    *Server
	store  *store.Store
	link   *fakeLink
	device *echoDevice
	router http.Handler
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

var (
	hashOnce sync.Once
	hashed   string
)

func operatorHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		hashed = h
	})
	return hashed
}

// newTestEnv builds a Server around a real store and panel service.
// The store starts with the firmware defaults as the confirmed config.
func newTestEnv(t *testing.T, withAuth bool, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	st := store.New(store.Options{})
	if _, err := st.SetConfig(reference.DefaultConfig()); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	dev := &echoDevice{store: st}
	link := &fakeLink{connected: true}

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:      config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:  testLogger(),
		Store:   st,
		Device:  link,
		Panel:   panel.New(st, dev, nil, nil),
		Version: "test",
	}
	if withAuth {
		deps.Auth = auth.NewAuthenticator(auth.Options{
			PasswordHash: operatorHash(t),
			Secret:       "test-secret-key-at-least-32-characters-long",
		})
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return &testEnv{srv: srv, store: st, link: link, device: dev, router: srv.buildRouter()}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

// ─── Server ────────────────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	env := newTestEnv(t, false)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start error: %v", err)
	}

	addr := env.srv.Addr()
	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if _, err := http.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

// ─── Health, metrics, middleware ───────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" || resp["device_connected"] != true {
		t.Errorf("unexpected health body: %v", resp)
	}
}

func TestHealth_DegradedComponent(t *testing.T) {
	env := newTestEnv(t, false, func(d *Deps) {
		d.Health = map[string]HealthChecker{"mqtt": failingChecker{}}
	})

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, w, &resp)
	if resp.Status != "degraded" || resp.Components["mqtt"] != "broker unreachable" {
		t.Errorf("unexpected health body: %+v", resp)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, false, func(d *Deps) {
		d.Metrics = map[string]func() any{
			"persister": func() any { return map[string]int{"written": 3} },
		}
	})

	w := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]json.RawMessage
	decodeBody(t, w, &resp)
	for _, key := range []string{"runtime", "device", "websocket", "persister"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("metrics missing %q", key)
		}
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	w = env.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "client-id-123")
	if got := w.Header().Get("X-Request-ID"); got != "client-id-123" {
		t.Errorf("X-Request-ID = %q, want client-id-123", got)
	}

	long := strings.Repeat("x", maxClientRequestIDLen+1)
	w = env.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", long)
	if got := w.Header().Get("X-Request-ID"); got == long || got == "" {
		t.Errorf("oversized X-Request-ID should be replaced, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, false, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	w := env.do(t, http.MethodOptions, "/api/v1/config", "", "Origin", "http://panel.local")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}

	w = env.do(t, http.MethodOptions, "/api/v1/config", "", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/v1/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var apiErr Error
	decodeBody(t, w, &apiErr)
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}
}

// ─── State reads ───────────────────────────────────────────────────

func TestGetState_JSON(t *testing.T) {
	env := newTestEnv(t, false)
	if _, err := env.store.AppendSensor(map[string]any{"lux": 42.0}); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var state store.State
	decodeBody(t, w, &state)
	if len(state.Sensors) != 1 || state.Sensors[0].Values["lux"] != 42.0 {
		t.Errorf("sensors = %+v", state.Sensors)
	}
	if state.Config.Confirmed == nil {
		t.Error("confirmed config should be present")
	}
}

func TestGetState_Msgpack(t *testing.T) {
	env := newTestEnv(t, false)
	if _, err := env.store.AppendButtonEvent(map[string]any{"middleButton": "pressed"}); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/state", "", "Accept", "application/msgpack")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeMsgpack {
		t.Fatalf("Content-Type = %q, want %q", ct, contentTypeMsgpack)
	}

	var state store.State
	if err := msgpack.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	if len(state.Buttons) != 1 || state.Buttons[0].Payload["middleButton"] != "pressed" {
		t.Errorf("buttons = %+v", state.Buttons)
	}
}

func TestListLogs(t *testing.T) {
	env := newTestEnv(t, false)
	for i := 0; i < 5; i++ {
		if _, err := env.store.AppendLog(map[string]any{"message": fmt.Sprintf("line %d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	w := env.do(t, http.MethodGet, "/api/v1/logs?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Logs  []store.LogEntry `json:"logs"`
		Count int              `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 2 || resp.Logs[0].Message != "line 3" || resp.Logs[1].Message != "line 4" {
		t.Errorf("logs = %+v", resp.Logs)
	}

	for _, q := range []string{"limit=0", "limit=abc", "limit=5000", "source=cloud"} {
		if w := env.do(t, http.MethodGet, "/api/v1/logs?"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}

	if w := env.do(t, http.MethodGet, "/api/v1/logs?source=db", ""); w.Code != http.StatusNotFound {
		t.Errorf("source=db without history: status = %d, want 404", w.Code)
	}
}

func TestListLogs_History(t *testing.T) {
	history := &fakeHistory{logs: []store.LogEntry{
		{ID: "3", Message: "newest"},
		{ID: "2", Message: "middle"},
		{ID: "1", Message: "oldest"},
	}}
	env := newTestEnv(t, false, func(d *Deps) { d.History = history })

	w := env.do(t, http.MethodGet, "/api/v1/logs?source=db&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Logs []store.LogEntry `json:"logs"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Logs) != 2 || resp.Logs[0].Message != "middle" || resp.Logs[1].Message != "newest" {
		t.Errorf("logs = %+v, want middle then newest", resp.Logs)
	}
}

func TestListSensorsAndButtons(t *testing.T) {
	env := newTestEnv(t, false)
	if _, err := env.store.AppendSensor(map[string]any{"lux": 1.0}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.AppendSensor(map[string]any{"lux": 2.0}); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/sensors", "")
	var sensors struct {
		Sensors []store.SensorReading `json:"sensors"`
		Latest  store.SensorReading   `json:"latest"`
	}
	decodeBody(t, w, &sensors)
	if len(sensors.Sensors) != 2 || sensors.Latest.Values["lux"] != 2.0 {
		t.Errorf("sensors = %+v", sensors)
	}

	w = env.do(t, http.MethodGet, "/api/v1/buttons", "")
	var buttons struct {
		Count int `json:"count"`
	}
	decodeBody(t, w, &buttons)
	if buttons.Count != 0 {
		t.Errorf("buttons count = %d, want 0", buttons.Count)
	}
}

func TestGetSysInfo(t *testing.T) {
	env := newTestEnv(t, false)

	if w := env.do(t, http.MethodGet, "/api/v1/sysinfo", ""); w.Code != http.StatusNotFound {
		t.Errorf("status before push = %d, want 404", w.Code)
	}
	if _, err := env.store.SetSysInfo(map[string]any{"pixelitVersion": "2.5.3"}); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodGet, "/api/v1/sysinfo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var info store.SystemInfo
	decodeBody(t, w, &info)
	if info.Payload["pixelitVersion"] != "2.5.3" {
		t.Errorf("payload = %v", info.Payload)
	}
}

func TestReferenceAndSchema(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/reference", "")
	var tables reference.Tables
	decodeBody(t, w, &tables)
	if len(tables.MatrixTypes) != 3 || len(tables.Pins) != 8 || len(tables.ButtonActions) != 6 {
		t.Errorf("reference tables = %+v", tables)
	}

	w = env.do(t, http.MethodGet, "/api/v1/config/schema", "")
	var schema struct {
		Fields []struct {
			Key string `json:"key"`
		} `json:"fields"`
	}
	decodeBody(t, w, &schema)
	if len(schema.Fields) == 0 {
		t.Error("schema should list fields")
	}
}

// ─── Config ────────────────────────────────────────────────────────

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/v1/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Confirmed   map[string]any `json:"confirmed"`
		HasProposal bool           `json:"has_proposal"`
		FromDevice  bool           `json:"from_device"`
		Effective   map[string]any `json:"effective"`
	}
	decodeBody(t, w, &resp)
	if resp.Confirmed == nil || !resp.FromDevice || resp.HasProposal || resp.Effective == nil {
		t.Errorf("unexpected config body: %+v", resp)
	}
}

func TestValidateConfig(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/v1/config/validate", `{"matrixBrightness": 100}`)
	if w.Code != http.StatusOK {
		t.Errorf("valid change: status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/config/validate", `{"mqttPort": 70000}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid change: status = %d, want 422", w.Code)
	}
	var apiErr Error
	decodeBody(t, w, &apiErr)
	if got := apiErr.Fields["mqttPort"]; len(got) != 1 || got[0] != "Must be between 1 and 65535" {
		t.Errorf("fields = %v", apiErr.Fields)
	}
	if env.store.Config().HasProposal {
		t.Error("validate must not record a proposal")
	}

	if w := env.do(t, http.MethodPost, "/api/v1/config/validate", `[1]`); w.Code != http.StatusBadRequest {
		t.Errorf("array body: status = %d, want 400", w.Code)
	}
}

func TestApplyConfig(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPut, "/api/v1/config", `{"matrixBrightness": 99}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	var res panel.Result
	decodeBody(t, w, &res)
	if res.Config.Confirmed["matrixBrightness"] != 99.0 {
		t.Errorf("confirmed brightness = %v, want 99", res.Config.Confirmed["matrixBrightness"])
	}
	if res.Config.HasProposal {
		t.Error("echo should settle the proposal")
	}
}

func TestApplyConfig_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		deviceErr  error
		wantStatus int
		wantCode   string
	}{
		{"validation", `{"mqttPort": 70000}`, nil, http.StatusUnprocessableEntity, ErrCodeValidation},
		{"no changes", `{}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid json", `{`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"not connected", `{"matrixBrightness": 1}`, connection.ErrNotConnected, http.StatusServiceUnavailable, ErrCodeDeviceOffline},
		{"connection lost", `{"matrixBrightness": 1}`, connection.ErrConnectionLost, http.StatusBadGateway, ErrCodeConnectionLost},
		{"timeout", `{"matrixBrightness": 1}`, connection.ErrTimeout, http.StatusGatewayTimeout, ErrCodeDeviceTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			env.device.fail(tt.deviceErr)

			w := env.do(t, http.MethodPut, "/api/v1/config", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var apiErr Error
			decodeBody(t, w, &apiErr)
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestResubmitAndDiscard(t *testing.T) {
	env := newTestEnv(t, false)

	if w := env.do(t, http.MethodPost, "/api/v1/config/resubmit", ""); w.Code != http.StatusConflict {
		t.Errorf("resubmit without proposal: status = %d, want 409", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/config/proposal", ""); w.Code != http.StatusNotFound {
		t.Errorf("discard without proposal: status = %d, want 404", w.Code)
	}

	env.device.fail(connection.ErrTimeout)
	if w := env.do(t, http.MethodPut, "/api/v1/config", `{"matrixBrightness": 5}`); w.Code != http.StatusGatewayTimeout {
		t.Fatalf("apply: status = %d, want 504", w.Code)
	}
	if !env.store.Config().HasProposal {
		t.Fatal("proposal should stay pending after a timeout")
	}

	env.device.fail(nil)
	if w := env.do(t, http.MethodPost, "/api/v1/config/resubmit", ""); w.Code != http.StatusOK {
		t.Fatalf("resubmit: status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if env.store.Config().HasProposal {
		t.Error("resubmit echo should settle the proposal")
	}

	env.device.fail(connection.ErrTimeout)
	env.do(t, http.MethodPut, "/api/v1/config", `{"matrixBrightness": 6}`)
	if w := env.do(t, http.MethodDelete, "/api/v1/config/proposal", ""); w.Code != http.StatusOK {
		t.Errorf("discard: status = %d, want 200", w.Code)
	}
	if env.store.Config().HasProposal {
		t.Error("proposal should be gone after discard")
	}
}

// ─── Connection ────────────────────────────────────────────────────

func TestConnectionEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/connection", "")
	var status connectionResponse
	decodeBody(t, w, &status)
	if status.URL != "ws://pixelit.test:81" || status.Stats.FramesReceived != 7 {
		t.Errorf("connection = %+v", status)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/connection/disconnect", ""); w.Code != http.StatusOK {
		t.Errorf("disconnect: status = %d", w.Code)
	}
	if env.link.IsConnected() {
		t.Error("link should be disconnected")
	}

	if w := env.do(t, http.MethodPost, "/api/v1/connection/reconnect", ""); w.Code != http.StatusOK {
		t.Errorf("reconnect: status = %d", w.Code)
	}
	if !env.link.IsConnected() {
		t.Error("link should be connected again")
	}

	env.link.reconnectErr = fmt.Errorf("connecting to ws://pixelit.test:81: dial tcp: connection refused")
	w = env.do(t, http.MethodPost, "/api/v1/connection/reconnect", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("failed reconnect: status = %d, want 502", w.Code)
	}
}

// ─── Auth ──────────────────────────────────────────────────────────

func TestAuth_ProtectsMutations(t *testing.T) {
	env := newTestEnv(t, true)

	if w := env.do(t, http.MethodPut, "/api/v1/config", `{"matrixBrightness": 1}`); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/v1/config", `{"matrixBrightness": 1}`, "Authorization", "Bearer garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}
	// Reads stay public.
	if w := env.do(t, http.MethodGet, "/api/v1/config", ""); w.Code != http.StatusOK {
		t.Errorf("read: status = %d, want 200", w.Code)
	}

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", `{"password":"`+testPassword+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	var token auth.Token
	decodeBody(t, w, &token)
	if token.AccessToken == "" || token.TokenType != "Bearer" {
		t.Fatalf("token = %+v", token)
	}

	w = env.do(t, http.MethodPut, "/api/v1/config", `{"matrixBrightness": 1}`, "Authorization", "Bearer "+token.AccessToken)
	if w.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestLogin_Errors(t *testing.T) {
	env := newTestEnv(t, true)

	if w := env.do(t, http.MethodPost, "/api/v1/auth/login", `{"password":"wrong"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/auth/login", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing password: status = %d, want 400", w.Code)
	}

	disabled := newTestEnv(t, false)
	if w := disabled.do(t, http.MethodPost, "/api/v1/auth/login", `{"password":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("auth disabled: status = %d, want 404", w.Code)
	}
}

func TestWriteDomainError_TooManyAttempts(t *testing.T) {
	w := httptest.NewRecorder()
	writeDomainError(w, auth.ErrTooManyAttempts)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestWriteDomainError_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"client gone", fmt.Errorf("submitting: %w", context.Canceled), 499, ErrCodeClientClosed},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeDeviceTimeout},
		{"no device config", store.ErrNoConfig, http.StatusConflict, ErrCodeNoDeviceConfig},
		{"dial failure", errors.New("dial tcp: refused"), http.StatusBadGateway, ErrCodeDeviceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeDomainError(w, tt.err)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body Error
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Code != tt.wantBody {
				t.Errorf("code = %q, want %q", body.Code, tt.wantBody)
			}
		})
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func newTestHubClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize), subscriptions: subs}
	hub.Register(client)
	return client
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	sensor := newTestHubClient(hub, "sensor")
	all := newTestHubClient(hub, WSChannelAll)
	logs := newTestHubClient(hub, "log")

	hub.Broadcast("sensor", map[string]any{"lux": 1})

	for name, client := range map[string]*WSClient{"sensor": sensor, "all": all} {
		select {
		case msg := <-client.send:
			var wsMsg WSMessage
			if err := json.Unmarshal(msg, &wsMsg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if wsMsg.Type != WSTypeEvent || wsMsg.EventType != "sensor" {
				t.Errorf("%s: message = %+v", name, wsMsg)
			}
		default:
			t.Errorf("%s client should have received the event", name)
		}
	}
	select {
	case <-logs.send:
		t.Error("log subscriber should not receive sensor events")
	default:
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}
	client := newTestHubClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_AttachStore(t *testing.T) {
	st := store.New(store.Options{})
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := newTestHubClient(hub, "connection")
	detach := hub.Attach(st)

	if err := st.SetConnectionState(store.ConnectionState{ReconnectError: true}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-client.send:
		var wsMsg struct {
			EventType string                `json:"event_type"`
			Payload   store.ConnectionState `json:"payload"`
		}
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "connection" || !wsMsg.Payload.ReconnectError {
			t.Errorf("event = %+v", wsMsg)
		}
	default:
		t.Fatal("expected a connection event")
	}

	detach()
	if err := st.SetConnectionState(store.ConnectionState{IsConnected: true}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-client.send:
		t.Error("no events after detach")
	default:
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	env := newTestEnv(t, false)
	detach := env.srv.hub.Attach(env.store)
	defer detach()
	ws := dialWS(t, env)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"sensor"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	resp := readWS(t, ws)
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("response = %+v", resp)
	}

	if _, err := env.store.AppendSensor(map[string]any{"temperature": 21.5}); err != nil {
		t.Fatal(err)
	}
	event := readWS(t, ws)
	if event.Type != WSTypeEvent || event.EventType != "sensor" {
		t.Fatalf("event = %+v", event)
	}
	payload, _ := event.Payload.(map[string]any)
	values, _ := payload["values"].(map[string]any)
	if values["temperature"] != 21.5 {
		t.Errorf("payload = %v", event.Payload)
	}
}

func TestWebSocket_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	ws := dialWS(t, env)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError {
		t.Errorf("invalid JSON: type = %q, want error", msg.Type)
	}

	if err := ws.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "x", Payload: WSSubscribePayload{Channels: []string{"devices"}}}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError || msg.ID != "x" {
		t.Errorf("unknown channel: %+v", msg)
	}

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypePong || msg.ID != "p" {
		t.Errorf("ping: %+v", msg)
	}

	if err := ws.WriteJSON(WSMessage{Type: "launch"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError {
		t.Errorf("unknown type: %+v", msg)
	}
}
