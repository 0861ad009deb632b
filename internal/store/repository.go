package store

import (
	"context"
	"time"
)

// Repository persists confirmed configuration snapshots and device logs.
// Proposed snapshots are never persisted.
type Repository interface {
	// SaveConfig records a confirmed snapshot.
	SaveConfig(ctx context.Context, snapshot Snapshot, confirmedAt time.Time) error

	// LatestConfig returns the most recent confirmed snapshot, or ErrNoSnapshot.
	LatestConfig(ctx context.Context) (Snapshot, time.Time, error)

	// AppendLog records one log line.
	AppendLog(ctx context.Context, entry LogEntry) error

	// RecentLogs returns up to limit log lines, newest first.
	RecentLogs(ctx context.Context, limit int) ([]LogEntry, error)

	// Prune deletes rows recorded before cutoff and returns how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
