package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pixelpanel/internal/store"
)

type point struct {
	kind   string
	device string
	fields map[string]any
	at     time.Time
}

type fakeWriter struct {
	mu     sync.Mutex
	points []point
}

func (w *fakeWriter) WriteSensorReading(device string, values map[string]any, at time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, point{"sensor", device, values, at})
	return len(values)
}

func (w *fakeWriter) WriteSysInfo(device string, payload map[string]any, at time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, point{"sysinfo", device, payload, at})
	return len(payload)
}

func TestRecorder(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	st := store.New(store.Options{Now: func() time.Time { return at }})
	w := &fakeWriter{}
	detach := NewRecorder(w, "kitchen").Attach(st)

	_, err := st.AppendSensor(map[string]any{"lux": 120.5})
	require.NoError(t, err)
	_, err = st.SetSysInfo(map[string]any{"freeHeap": 20000})
	require.NoError(t, err)
	_, err = st.AppendLog(map[string]any{"message": "ignored"})
	require.NoError(t, err)

	require.Len(t, w.points, 2)
	assert.Equal(t, "sensor", w.points[0].kind)
	assert.Equal(t, "kitchen", w.points[0].device)
	assert.Equal(t, 120.5, w.points[0].fields["lux"])
	assert.Equal(t, at, w.points[0].at)
	assert.Equal(t, "sysinfo", w.points[1].kind)

	detach()
	_, err = st.AppendSensor(map[string]any{"lux": 1})
	require.NoError(t, err)
	assert.Len(t, w.points, 2, "no writes after detach")
}
