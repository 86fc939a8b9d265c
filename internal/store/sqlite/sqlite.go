package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

// New opens (or creates) the SQLite database at path and prepares the schema.
func New(ctx context.Context, path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// NewWithDB wires the store onto an existing connection (used by tests and
// the factory).
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Modes() store.Modes   { return &modes{db: s.db} }
func (s *sqliteStore) Events() store.Events { return &events{db: s.db} }

func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqliteStore) Close() error                         { return s.db.Close() }

// --- Modes ---

type modes struct{ db *sql.DB }

func (m *modes) Upsert(ctx context.Context, md *model.Mode) error {
	if md.Key == "" {
		return fmt.Errorf("%w: mode key is empty", model.ErrValidation)
	}
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO modes (mode_key, name, mode_group, manual_on, manual_started_at, manual_expires_at, override_enabled, default_minutes, last_manual_end)
        VALUES (?,?,?,?,?,?,?,?,?)
        ON CONFLICT(mode_key) DO UPDATE SET
            name=excluded.name,
            mode_group=excluded.mode_group,
            manual_on=excluded.manual_on,
            manual_started_at=excluded.manual_started_at,
            manual_expires_at=excluded.manual_expires_at,
            override_enabled=excluded.override_enabled,
            default_minutes=excluded.default_minutes,
            last_manual_end=excluded.last_manual_end`,
		md.Key, md.Name, md.Group, boolToInt(md.ManualOn), md.ManualStartedAt, md.ManualExpiresAt,
		boolToInt(md.OverrideEnabled), md.DefaultDurationMinutes, md.LastManualEnd)
	return err
}

func (m *modes) Get(ctx context.Context, key string) (*model.Mode, error) {
	row := m.db.QueryRowContext(ctx, `
        SELECT mode_key, name, mode_group, manual_on, manual_started_at, manual_expires_at, override_enabled, default_minutes, last_manual_end
        FROM modes WHERE mode_key = ?`, key)
	md, err := scanMode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mode %q: %w", key, model.ErrNotFound)
	}
	return md, err
}

func (m *modes) List(ctx context.Context) ([]*model.Mode, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT mode_key, name, mode_group, manual_on, manual_started_at, manual_expires_at, override_enabled, default_minutes, last_manual_end
        FROM modes ORDER BY mode_key`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Mode
	for rows.Next() {
		md, err := scanMode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

func (m *modes) GetMarker(ctx context.Context, name string) (string, error) {
	var v string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM markers WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (m *modes) SetMarker(ctx context.Context, name, value string) error {
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO markers (name, value) VALUES (?,?)
        ON CONFLICT(name) DO UPDATE SET value=excluded.value`, name, value)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanMode(r rowScanner) (*model.Mode, error) {
	var md model.Mode
	var manualOn, override int
	var started, expires, lastEnd sql.NullTime
	if err := r.Scan(&md.Key, &md.Name, &md.Group, &manualOn, &started, &expires, &override, &md.DefaultDurationMinutes, &lastEnd); err != nil {
		return nil, err
	}
	md.ManualOn = manualOn != 0
	md.OverrideEnabled = override != 0
	md.ManualStartedAt = nullTimePtr(started)
	md.ManualExpiresAt = nullTimePtr(expires)
	md.LastManualEnd = nullTimePtr(lastEnd)
	return &md, nil
}

// --- Events ---

type events struct{ db *sql.DB }

func (e *events) Create(ctx context.Context, ev *model.CalendarEvent) (*model.CalendarEvent, error) {
	out := *ev
	if out.Created.IsZero() {
		out.Created = time.Now().UTC()
	}
	_, err := e.db.ExecContext(ctx, `
        INSERT INTO events (mode_key, event_id, start_at, end_at, summary, description, linked_mode_key, linked_event_id, created_at)
        VALUES (?,?,?,?,?,?,?,?,?)`,
		out.ModeKey, out.EventID, out.Start, out.End, out.Summary, out.Description,
		out.LinkedModeKey, out.LinkedEventID, out.Created)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *events) Update(ctx context.Context, ev *model.CalendarEvent) error {
	res, err := e.db.ExecContext(ctx, `
        UPDATE events SET start_at=?, end_at=?, summary=?, description=?, linked_mode_key=?, linked_event_id=?
        WHERE mode_key=? AND event_id=?`,
		ev.Start, ev.End, ev.Summary, ev.Description, ev.LinkedModeKey, ev.LinkedEventID,
		ev.ModeKey, ev.EventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s/%s: %w", ev.ModeKey, ev.EventID, model.ErrNotFound)
	}
	return nil
}

// Delete is a no-op when the event is already gone.
func (e *events) Delete(ctx context.Context, modeKey, eventID string) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM events WHERE mode_key=? AND event_id=?`, modeKey, eventID)
	return err
}

func (e *events) Get(ctx context.Context, modeKey, eventID string) (*model.CalendarEvent, error) {
	row := e.db.QueryRowContext(ctx, `
        SELECT mode_key, event_id, start_at, end_at, summary, description, linked_mode_key, linked_event_id, created_at
        FROM events WHERE mode_key=? AND event_id=?`, modeKey, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s/%s: %w", modeKey, eventID, model.ErrNotFound)
	}
	return ev, err
}

func (e *events) List(ctx context.Context, modeKey string) ([]*model.CalendarEvent, error) {
	rows, err := e.db.QueryContext(ctx, `
        SELECT mode_key, event_id, start_at, end_at, summary, description, linked_mode_key, linked_event_id, created_at
        FROM events WHERE mode_key=? ORDER BY start_at, event_id`, modeKey)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (e *events) ListRange(ctx context.Context, modeKey string, from, to time.Time) ([]*model.CalendarEvent, error) {
	rows, err := e.db.QueryContext(ctx, `
        SELECT mode_key, event_id, start_at, end_at, summary, description, linked_mode_key, linked_event_id, created_at
        FROM events WHERE mode_key=? AND start_at < ? AND end_at > ? ORDER BY start_at, event_id`,
		modeKey, to, from)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*model.CalendarEvent, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvent(r rowScanner) (*model.CalendarEvent, error) {
	var ev model.CalendarEvent
	if err := r.Scan(&ev.ModeKey, &ev.EventID, &ev.Start, &ev.End, &ev.Summary, &ev.Description,
		&ev.LinkedModeKey, &ev.LinkedEventID, &ev.Created); err != nil {
		return nil, err
	}
	return &ev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
