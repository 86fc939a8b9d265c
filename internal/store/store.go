package store

import (
	"context"
	"time"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

// Store exposes the persistence the engine depends on: mode switch state
// (the host-managed key-value role) and the calendar provider contract.
// Implementations live under internal/store/<driver>/.
type Store interface {
	Modes() Modes
	Events() Events
	HealthPing(ctx context.Context) error
	Close() error
}

// Modes persists per-mode manual/override state and engine markers so toggles
// survive process restarts.
type Modes interface {
	Upsert(ctx context.Context, m *model.Mode) error
	Get(ctx context.Context, key string) (*model.Mode, error)
	List(ctx context.Context) ([]*model.Mode, error)

	// Markers are small named values owned by the engine, e.g. the
	// last-auto-reset date guard. Get returns "" when unset.
	GetMarker(ctx context.Context, name string) (string, error)
	SetMarker(ctx context.Context, name, value string) error
}

// Events is the calendar provider contract. The engine treats it as the
// source of truth for scheduled activity; Delete is idempotent.
type Events interface {
	Create(ctx context.Context, ev *model.CalendarEvent) (*model.CalendarEvent, error)
	Update(ctx context.Context, ev *model.CalendarEvent) error
	Delete(ctx context.Context, modeKey, eventID string) error
	Get(ctx context.Context, modeKey, eventID string) (*model.CalendarEvent, error)
	List(ctx context.Context, modeKey string) ([]*model.CalendarEvent, error)
	ListRange(ctx context.Context, modeKey string, from, to time.Time) ([]*model.CalendarEvent, error)
}

// Engine-owned marker names.
const (
	// MarkerLastAutoReset guards the daily auto-reset against double firing.
	MarkerLastAutoReset = "last_auto_reset"
	// MarkerArchivedEvents counts events removed after their retention window.
	MarkerArchivedEvents = "archived_event_count"
	// MarkerArchiveLog holds the retained archived-event payloads as JSON.
	MarkerArchiveLog = "archived_event_log"
)
