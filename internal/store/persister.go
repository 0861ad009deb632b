package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

const (
	persistQueueSize = 256
	persistTimeout   = 5 * time.Second
	pruneInterval    = time.Hour
)

type persistJob struct {
	config *ConfigState
	log    *LogEntry
}

// Persister records confirmed configs and log lines from a Store into a
// Repository. Store listeners only enqueue; a single goroutine in Run does
// the writes, so a slow disk never stalls the device receive loop. When the
// queue is full the record is dropped and counted.
type Persister struct {
	repo      Repository
	logger    Logger
	retention time.Duration
	queue     chan persistJob
	dropped   atomic.Uint64
	written   atomic.Uint64

	// lastConfirmed is the ConfirmedAt (UnixNano) last enqueued, so discarding
	// a proposal does not persist the same snapshot again.
	lastConfirmed atomic.Int64
}

// NewPersister creates a Persister. retention of 0 disables pruning.
func NewPersister(repo Repository, retention time.Duration, logger Logger) *Persister {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Persister{
		repo:      repo,
		logger:    logger,
		retention: retention,
		queue:     make(chan persistJob, persistQueueSize),
	}
}

// Restore seeds s with the last persisted confirmed config, if any.
func (p *Persister) Restore(ctx context.Context, s *Store) error {
	snap, at, err := p.repo.LatestConfig(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	p.logger.Info("restored last confirmed config", "confirmed_at", at, "keys", len(snap))
	return s.RestoreConfig(snap, at)
}

// Attach subscribes to the config and log slices of s. The returned
// function detaches.
func (p *Persister) Attach(s *Store) func() {
	unConfig := s.Subscribe(SliceConfig, func(c Change) {
		// Only device-confirmed snapshots are ground truth.
		if c.Config == nil || c.Config.Stale || c.Config.HasProposal || c.Config.Confirmed == nil {
			return
		}
		at := c.Config.ConfirmedAt.UnixNano()
		if p.lastConfirmed.Swap(at) == at {
			return
		}
		p.enqueue(persistJob{config: c.Config})
	})
	unLogs := s.Subscribe(SliceLogs, func(c Change) {
		if c.Log != nil {
			p.enqueue(persistJob{log: c.Log})
		}
	})
	return func() {
		unConfig()
		unLogs()
	}
}

func (p *Persister) enqueue(job persistJob) {
	select {
	case p.queue <- job:
	default:
		if p.dropped.Add(1)%100 == 1 {
			p.logger.Warn("persist queue full, dropping records", "dropped_total", p.dropped.Load())
		}
	}
}

// Run writes queued records until ctx is cancelled, then drains what is
// already queued.
func (p *Persister) Run(ctx context.Context) error {
	var pruneC <-chan time.Time
	if p.retention > 0 {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		pruneC = ticker.C
		p.prune()
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case job := <-p.queue:
					p.write(job)
				default:
					return nil
				}
			}
		case job := <-p.queue:
			p.write(job)
		case <-pruneC:
			p.prune()
		}
	}
}

func (p *Persister) write(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	switch {
	case job.config != nil:
		err = p.repo.SaveConfig(ctx, job.config.Confirmed, job.config.ConfirmedAt)
	case job.log != nil:
		err = p.repo.AppendLog(ctx, *job.log)
	}
	if err != nil {
		p.logger.Error("persisting device state failed", "error", err)
		return
	}
	p.written.Add(1)
}

func (p *Persister) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	n, err := p.repo.Prune(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.logger.Error("pruning device history failed", "error", err)
		return
	}
	if n > 0 {
		p.logger.Info("pruned device history", "rows", n)
	}
}

// PersisterStats reports persister counters.
type PersisterStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Queued  int    `json:"queued"`
}

// Stats returns a snapshot of the counters.
func (p *Persister) Stats() PersisterStats {
	return PersisterStats{
		Written: p.written.Load(),
		Dropped: p.dropped.Load(),
		Queued:  len(p.queue),
	}
}
