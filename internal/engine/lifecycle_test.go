package engine

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store/memstore"
)

func TestPhaseOfIsPureFunctionOfBounds(t *testing.T) {
	start, end := day(8, 0), day(10, 0)
	assert.Equal(t, model.PhaseUpcoming, model.PhaseOf(start, end, day(7, 59)))
	assert.Equal(t, model.PhaseRunning, model.PhaseOf(start, end, day(8, 0)))
	assert.Equal(t, model.PhaseRunning, model.PhaseOf(start, end, day(9, 59)))
	assert.Equal(t, model.PhaseEnded, model.PhaseOf(start, end, day(10, 0)))
}

func TestLifecycleAdvancesPhasesInPlace(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLifecycle(s.Events(), 24*time.Hour, zerolog.Nop())

	created, err := s.Events().Create(ctx, ev("e1", day(8, 0), day(10, 0)))
	require.NoError(t, err)

	l.advance(ctx, "bris", []*model.CalendarEvent{created}, day(7, 0))
	sensors := l.sensorsFor("bris")
	require.Len(t, sensors, 1)
	assert.Equal(t, model.PhaseUpcoming, sensors[0].Phase)
	assert.Equal(t, float64(7200), sensors[0].DurationSeconds)

	l.advance(ctx, "bris", []*model.CalendarEvent{created}, day(9, 0))
	assert.Equal(t, model.PhaseRunning, l.sensorsFor("bris")[0].Phase)

	l.advance(ctx, "bris", []*model.CalendarEvent{created}, day(11, 0))
	assert.Equal(t, model.PhaseEnded, l.sensorsFor("bris")[0].Phase)
}

func TestLifecycleArchivesAfterRetention(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLifecycle(s.Events(), 24*time.Hour, zerolog.Nop())

	created, err := s.Events().Create(ctx, ev("e1", day(8, 0), day(10, 0)))
	require.NoError(t, err)

	// One minute short of the retention window: kept for audit.
	justBefore := day(10, 0).Add(24*time.Hour - time.Minute)
	l.advance(ctx, "bris", []*model.CalendarEvent{created}, justBefore)
	assert.Len(t, l.sensorsFor("bris"), 1)
	assert.Equal(t, 0, l.archivedCount())

	atRetention := day(10, 0).Add(24 * time.Hour)
	removed := l.advance(ctx, "bris", []*model.CalendarEvent{created}, atRetention)
	assert.Equal(t, 1, removed)
	assert.Empty(t, l.sensorsFor("bris"))
	assert.Equal(t, 1, l.archivedCount())

	_, err = s.Events().Get(ctx, "bris", "e1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// The event is gone from the store but its payload stays inspectable.
	entries := l.archivedEvents()
	require.Len(t, entries, 1)
	assert.Equal(t, "bris", entries[0].ModeKey)
	assert.Equal(t, "e1", entries[0].EventID)
	assert.Equal(t, "Bris", entries[0].Summary)
	assert.True(t, entries[0].Start.Equal(day(8, 0)))
	assert.True(t, entries[0].End.Equal(day(10, 0)))
	assert.True(t, entries[0].ArchivedAt.Equal(atRetention))
}

func TestLifecycleArchivesVanishedEvents(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLifecycle(s.Events(), 24*time.Hour, zerolog.Nop())

	l.advance(ctx, "bris", []*model.CalendarEvent{ev("e1", day(8, 0), day(10, 0))}, day(9, 0))
	require.Len(t, l.sensorsFor("bris"), 1)

	// The event disappeared from the provider out of band: no store removal,
	// but its last observed payload lands in the archive.
	removed := l.advance(ctx, "bris", nil, day(9, 1))
	assert.Equal(t, 0, removed)
	assert.Empty(t, l.sensorsFor("bris"))
	assert.Equal(t, 1, l.archivedCount())

	entries := l.archivedEvents()
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].EventID)
	assert.Equal(t, "Bris", entries[0].Summary)
	assert.True(t, entries[0].ArchivedAt.Equal(day(9, 1)))
}

func TestLifecycleArchiveStaysBounded(t *testing.T) {
	s := memstore.New()
	l := newLifecycle(s.Events(), 24*time.Hour, zerolog.Nop())

	for i := 0; i < maxArchiveEntries+5; i++ {
		l.record(model.ArchivedEvent{ModeKey: "bris", EventID: "e" + strconv.Itoa(i)})
	}
	assert.Equal(t, maxArchiveEntries+5, l.archivedCount())
	entries := l.archivedEvents()
	assert.Len(t, entries, maxArchiveEntries)
	// Oldest entries were trimmed first.
	assert.Equal(t, "e5", entries[0].EventID)
}

func TestLifecycleForgetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLifecycle(s.Events(), 24*time.Hour, zerolog.Nop())

	l.advance(ctx, "bris", []*model.CalendarEvent{ev("e1", day(8, 0), day(10, 0))}, day(9, 0))
	l.forget("bris", "e1")
	l.forget("bris", "e1")
	assert.Empty(t, l.sensorsFor("bris"))
}

func TestLifecycleSensorsScopedPerMode(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLifecycle(s.Events(), 24*time.Hour, zerolog.Nop())

	l.advance(ctx, "bris", []*model.CalendarEvent{ev("e1", day(8, 0), day(10, 0))}, day(9, 0))
	other := &model.CalendarEvent{EventID: "e2", ModeKey: "home", Start: day(8, 0), End: day(9, 0)}
	l.advance(ctx, "home", []*model.CalendarEvent{other}, day(9, 0))

	assert.Len(t, l.sensorsFor("bris"), 1)
	assert.Len(t, l.sensorsFor("home"), 1)

	// Reconciling one mode never disturbs another's sensors.
	l.advance(ctx, "bris", nil, day(9, 1))
	assert.Len(t, l.sensorsFor("home"), 1)
}
