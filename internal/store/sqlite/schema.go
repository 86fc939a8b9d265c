package sqlite

import (
	"context"
	"database/sql"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS modes (
    mode_key            TEXT PRIMARY KEY,
    name                TEXT NOT NULL DEFAULT '',
    mode_group          TEXT NOT NULL DEFAULT '',
    manual_on           INTEGER NOT NULL DEFAULT 0,
    manual_started_at   TIMESTAMP,
    manual_expires_at   TIMESTAMP,
    override_enabled    INTEGER NOT NULL DEFAULT 0,
    default_minutes     INTEGER NOT NULL DEFAULT 0,
    last_manual_end     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
    mode_key        TEXT NOT NULL,
    event_id        TEXT NOT NULL,
    start_at        TIMESTAMP NOT NULL,
    end_at          TIMESTAMP NOT NULL,
    summary         TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    linked_mode_key TEXT NOT NULL DEFAULT '',
    linked_event_id TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMP NOT NULL,
    PRIMARY KEY (mode_key, event_id)
);
CREATE INDEX IF NOT EXISTS idx_events_mode_start ON events (mode_key, start_at);

CREATE TABLE IF NOT EXISTS markers (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates the tables on first run. Statements are idempotent so
// startup can always call this.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}
