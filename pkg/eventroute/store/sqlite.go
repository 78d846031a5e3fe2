package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// timeLayout pads fractional seconds to full width. RFC3339Nano trims
// trailing zeros, and over variable-width strings the SQL range
// comparisons stop being chronological at sub-second boundaries.
// Timestamps are normalized to UTC before formatting so the zone
// suffix is always "Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists events to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite event store.
// The path should be a file path (e.g., "./events.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			correlation_id TEXT NOT NULL DEFAULT '',
			causation_id TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			is_replay INTEGER NOT NULL DEFAULT 0,
			seq INTEGER
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_events_correlation_id ON events(correlation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store. INSERT OR IGNORE keeps the first write for
// a given event ID.
func (s *SQLiteStore) Append(ctx context.Context, evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	metadata, err := json.Marshal(evt.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, type, source, timestamp, correlation_id, causation_id, payload, metadata, is_replay, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(seq) FROM events), 0) + 1)
	`, evt.ID, evt.Type, evt.Source,
		evt.Timestamp.UTC().Format(timeLayout),
		evt.CorrelationID, evt.CausationID,
		string(payload), string(metadata), boolToInt(evt.IsReplay))

	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// GetByID implements Store.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return event.Event{}, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, source, timestamp, correlation_id, causation_id, payload, metadata, is_replay
		FROM events WHERE id = ?
	`, id)

	evt, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return event.Event{}, ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event: %w", err)
	}
	return evt, nil
}

// Query implements Store. Results come back in append order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	where := "1=1"
	args := make([]any, 0, 7)

	if q.Type != "" {
		where += " AND type = ?"
		args = append(args, q.Type)
	}
	if q.Source != "" {
		where += " AND source = ?"
		args = append(args, q.Source)
	}
	if q.CorrelationID != "" {
		where += " AND correlation_id = ?"
		args = append(args, q.CorrelationID)
	}
	if q.CausationID != "" {
		where += " AND causation_id = ?"
		args = append(args, q.CausationID)
	}
	if !q.Start.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, q.Start.UTC().Format(timeLayout))
	}
	if !q.End.IsZero() {
		where += " AND timestamp < ?"
		args = append(args, q.End.UTC().Format(timeLayout))
	}

	query := `
		SELECT id, type, source, timestamp, correlation_id, causation_id, payload, metadata, is_replay
		FROM events WHERE ` + where + ` ORDER BY seq`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]event.Event, 0)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (event.Event, error) {
	var evt event.Event
	var timestamp, payload, metadata string
	var isReplay int

	err := row.Scan(&evt.ID, &evt.Type, &evt.Source, &timestamp,
		&evt.CorrelationID, &evt.CausationID, &payload, &metadata, &isReplay)
	if err != nil {
		return event.Event{}, err
	}

	evt.Timestamp, err = time.Parse(timeLayout, timestamp)
	if err != nil {
		return event.Event{}, fmt.Errorf("parse timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
		return event.Event{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &evt.Metadata); err != nil {
		return event.Event{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	evt.IsReplay = isReplay != 0
	return evt, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
