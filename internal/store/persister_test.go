package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu      sync.Mutex
	configs []Snapshot
	logs    []LogEntry
	latest  Snapshot
	at      time.Time
}

func (m *memRepo) SaveConfig(_ context.Context, s Snapshot, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append(m.configs, s)
	return nil
}

func (m *memRepo) LatestConfig(context.Context) (Snapshot, time.Time, error) {
	if m.latest == nil {
		return nil, time.Time{}, ErrNoSnapshot
	}
	return m.latest, m.at, nil
}

func (m *memRepo) AppendLog(_ context.Context, e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

func (m *memRepo) RecentLogs(context.Context, int) ([]LogEntry, error) { return nil, nil }

func (m *memRepo) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memRepo) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.configs), len(m.logs)
}

func TestPersister_RecordsConfirmedOnly(t *testing.T) {
	repo := &memRepo{}
	s := newTestStore(Options{})
	p := NewPersister(repo, 0, nil)
	detach := p.Attach(s)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	_, err := s.SetConfig(map[string]any{"hostname": "PixelIt"})
	require.NoError(t, err)
	_, err = s.ProposeConfig(map[string]any{"hostname": "draft"})
	require.NoError(t, err)
	s.DiscardProposal()
	_, err = s.AppendLog(map[string]any{"message": "hello"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		c, l := repo.counts()
		return c == 1 && l == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	configs, _ := repo.counts()
	assert.Equal(t, 1, configs, "proposals and discards are not persisted")
	assert.Equal(t, uint64(2), p.Stats().Written)
}

func TestPersister_Restore(t *testing.T) {
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	repo := &memRepo{latest: Snapshot{"hostname": "saved"}, at: at}
	s := newTestStore(Options{})

	p := NewPersister(repo, 0, nil)
	require.NoError(t, p.Restore(context.Background(), s))

	cfg := s.Config()
	assert.True(t, cfg.Stale)
	assert.Equal(t, "saved", cfg.Confirmed["hostname"])

	// Nothing persisted: stale snapshots are not ground truth.
	p.Attach(s)
	c, _ := repo.counts()
	assert.Equal(t, 0, c)
}

func TestPersister_RestoreEmpty(t *testing.T) {
	s := newTestStore(Options{})
	p := NewPersister(&memRepo{}, 0, nil)
	require.NoError(t, p.Restore(context.Background(), s))
	assert.Nil(t, s.Config().Confirmed)
}

func TestPersister_DropsWhenFull(t *testing.T) {
	p := NewPersister(&memRepo{}, 0, nil)
	for range persistQueueSize + 5 {
		p.enqueue(persistJob{log: &LogEntry{ID: "x"}})
	}
	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Dropped)
	assert.Equal(t, persistQueueSize, stats.Queued)
}
