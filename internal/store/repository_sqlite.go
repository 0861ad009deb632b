package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// SQLiteRepository implements Repository on the tables created by the
// device_history migration. Rows are scoped to one device name.
type SQLiteRepository struct {
	db     *sql.DB
	device string
}

// NewSQLiteRepository creates a repository for the named device.
func NewSQLiteRepository(db *sql.DB, device string) *SQLiteRepository {
	return &SQLiteRepository{db: db, device: device}
}

// SaveConfig inserts a confirmed snapshot as JSON.
func (r *SQLiteRepository) SaveConfig(ctx context.Context, snapshot Snapshot, confirmedAt time.Time) error {
	if snapshot == nil {
		return ErrInvalidPayload
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO config_snapshots (device, snapshot, confirmed_at) VALUES (?, ?, ?)",
		r.device,
		string(data),
		formatTime(confirmedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting config snapshot: %w", err)
	}
	return nil
}

// LatestConfig returns the newest confirmed snapshot.
func (r *SQLiteRepository) LatestConfig(ctx context.Context) (Snapshot, time.Time, error) {
	var data, confirmedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT snapshot, confirmed_at FROM config_snapshots
		 WHERE device = ?
		 ORDER BY id DESC
		 LIMIT 1`,
		r.device,
	).Scan(&data, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("querying config snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	at, err := parseTime(confirmedAt)
	if err != nil {
		return nil, time.Time{}, err
	}
	return snap, at, nil
}

// AppendLog inserts a log line. Re-inserting the same ID is ignored.
func (r *SQLiteRepository) AppendLog(ctx context.Context, entry LogEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: log entry id is required", ErrInvalidPayload)
	}
	payload := entry.Payload
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling log payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO device_logs (id, device, function, message, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		r.device,
		entry.Function,
		entry.Message,
		string(data),
		formatTime(entry.Time),
	)
	if err != nil {
		return fmt.Errorf("inserting device log: %w", err)
	}
	return nil
}

// RecentLogs returns log lines newest first (default 100, max 1000).
func (r *SQLiteRepository) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, function, message, payload, received_at
		 FROM device_logs
		 WHERE device = ?
		 ORDER BY received_at DESC, rowid DESC
		 LIMIT ?`,
		r.device,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device logs: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, limit)
	for rows.Next() {
		var e LogEntry
		var payload, receivedAt string
		if err := rows.Scan(&e.ID, &e.Function, &e.Message, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning device log: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling log payload: %w", err)
		}
		if e.Time, err = parseTime(receivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device logs: %w", err)
	}
	return entries, nil
}

// Prune deletes logs and snapshots older than cutoff. The newest snapshot
// is always kept so a restart can restore it.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := formatTime(cutoff)

	logs, err := r.db.ExecContext(ctx,
		"DELETE FROM device_logs WHERE device = ? AND received_at < ?",
		r.device, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting device logs: %w", err)
	}
	snaps, err := r.db.ExecContext(ctx,
		`DELETE FROM config_snapshots
		 WHERE device = ? AND confirmed_at < ?
		   AND id <> (SELECT MAX(id) FROM config_snapshots WHERE device = ?)`,
		r.device, ts, r.device,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting config snapshots: %w", err)
	}

	nLogs, err := logs.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	nSnaps, err := snaps.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return nLogs + nSnaps, nil
}

// Timestamps are stored as fixed-width UTC RFC 3339 with nanoseconds so
// string comparison orders them correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fbErr := time.Parse(time.RFC3339Nano, value); fbErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
}
