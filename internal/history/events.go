package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Event is one fault, reconnect or hotplug notification within a run.
type Event struct {
	ID     int64
	RunID  string
	Time   time.Time
	Kind   string
	Source string
	Detail string
}

// AddEvent appends an event to a run.
func (s *Store) AddEvent(ctx context.Context, event Event) error {
	_, err := s.exec(ctx,
		`INSERT INTO events (run_id, occurred_at, kind, source, detail) VALUES (?, ?, ?, ?, ?)`,
		event.RunID,
		formatTime(event.Time),
		event.Kind,
		nullableString(event.Source),
		nullableString(event.Detail),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Events returns a run's events oldest first. A limit <= 0 returns all.
func (s *Store) Events(ctx context.Context, runID string, limit int) ([]Event, error) {
	query := `SELECT id, run_id, occurred_at, kind, source, detail FROM events WHERE run_id = ? ORDER BY occurred_at, id`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			timeRaw string
			source  sql.NullString
			detail  sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.RunID, &timeRaw, &event.Kind, &source, &detail); err != nil {
			return nil, err
		}
		event.Source = source.String
		event.Detail = detail.String
		if t, err := parseTimeString(timeRaw); err == nil {
			event.Time = t
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// EventCounts groups a run's events by kind.
func (s *Store) EventCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT kind, COUNT(1) FROM events WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("event counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// Recorder binds a store to one run so callers can record events without
// carrying the run ID. A nil Recorder discards events.
type Recorder struct {
	store *Store
	runID string
}

// NewRecorder returns a recorder for runID.
func NewRecorder(store *Store, runID string) *Recorder {
	if store == nil {
		return nil
	}
	return &Recorder{store: store, runID: runID}
}

// Record appends one event.
func (r *Recorder) Record(ctx context.Context, at time.Time, kind, source, detail string) error {
	if r == nil {
		return nil
	}
	return r.store.AddEvent(ctx, Event{RunID: r.runID, Time: at, Kind: kind, Source: source, Detail: detail})
}
