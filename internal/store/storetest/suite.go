package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Modes: upsert, get, list, update in place
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expires := started.Add(45 * time.Minute)
	md := &model.Mode{
		Key:                    "bris",
		Name:                   "Bris",
		Group:                  model.GroupEvent,
		ManualOn:               true,
		ManualStartedAt:        &started,
		ManualExpiresAt:        &expires,
		DefaultDurationMinutes: 45,
	}
	if err := s.Modes().Upsert(ctx, md); err != nil {
		t.Fatalf("Upsert mode: %v", err)
	}
	got, err := s.Modes().Get(ctx, "bris")
	if err != nil {
		t.Fatalf("Get mode: %v", err)
	}
	if !got.ManualOn || got.ManualExpiresAt == nil || !got.ManualExpiresAt.Equal(expires) {
		t.Fatalf("Get mode: round-trip mismatch: %+v", got)
	}

	md.ManualOn = false
	md.ManualStartedAt = nil
	md.ManualExpiresAt = nil
	md.LastManualEnd = &expires
	if err := s.Modes().Upsert(ctx, md); err != nil {
		t.Fatalf("Upsert mode (update): %v", err)
	}
	got, err = s.Modes().Get(ctx, "bris")
	if err != nil || got.ManualOn || got.ManualExpiresAt != nil {
		t.Fatalf("Get mode after update: got=%+v err=%v", got, err)
	}

	if _, err := s.Modes().Get(ctx, "nonesuch"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing mode: want ErrNotFound, got %v", err)
	}

	if err := s.Modes().Upsert(ctx, &model.Mode{Key: "no_tachnun", Name: "No Tachnun", Group: model.GroupBase}); err != nil {
		t.Fatalf("Upsert second mode: %v", err)
	}
	lst, err := s.Modes().List(ctx)
	if err != nil || len(lst) != 2 {
		t.Fatalf("List modes: n=%d err=%v", len(lst), err)
	}

	// Markers
	if v, err := s.Modes().GetMarker(ctx, store.MarkerLastAutoReset); err != nil || v != "" {
		t.Fatalf("GetMarker unset: v=%q err=%v", v, err)
	}
	if err := s.Modes().SetMarker(ctx, store.MarkerLastAutoReset, "2026-03-01"); err != nil {
		t.Fatalf("SetMarker: %v", err)
	}
	if err := s.Modes().SetMarker(ctx, store.MarkerLastAutoReset, "2026-03-02"); err != nil {
		t.Fatalf("SetMarker overwrite: %v", err)
	}
	if v, err := s.Modes().GetMarker(ctx, store.MarkerLastAutoReset); err != nil || v != "2026-03-02" {
		t.Fatalf("GetMarker: v=%q err=%v", v, err)
	}

	// Events: create, get, range query, update, idempotent delete
	ev := &model.CalendarEvent{
		EventID: uuid.New().String(),
		ModeKey: "bris",
		Start:   time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		Summary: "Morning bris",
	}
	created, err := s.Events().Create(ctx, ev)
	if err != nil {
		t.Fatalf("Create event: %v", err)
	}
	if created.Created.IsZero() {
		t.Fatalf("Create event: Created not stamped")
	}

	gotEv, err := s.Events().Get(ctx, "bris", ev.EventID)
	if err != nil || !gotEv.Start.Equal(ev.Start) || !gotEv.End.Equal(ev.End) {
		t.Fatalf("Get event: got=%+v err=%v", gotEv, err)
	}

	inRange, err := s.Events().ListRange(ctx, "bris",
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC))
	if err != nil || len(inRange) != 1 {
		t.Fatalf("ListRange overlapping: n=%d err=%v", len(inRange), err)
	}
	outRange, err := s.Events().ListRange(ctx, "bris",
		time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC))
	if err != nil || len(outRange) != 0 {
		t.Fatalf("ListRange disjoint (end-exclusive): n=%d err=%v", len(outRange), err)
	}

	gotEv.End = gotEv.End.Add(30 * time.Minute)
	gotEv.Summary = "Morning bris (extended)"
	if err := s.Events().Update(ctx, gotEv); err != nil {
		t.Fatalf("Update event: %v", err)
	}
	gotEv, err = s.Events().Get(ctx, "bris", ev.EventID)
	if err != nil || gotEv.Summary != "Morning bris (extended)" {
		t.Fatalf("Get after update: got=%+v err=%v", gotEv, err)
	}

	if err := s.Events().Update(ctx, &model.CalendarEvent{ModeKey: "bris", EventID: "missing"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Update missing event: want ErrNotFound, got %v", err)
	}

	// Deleting twice must both succeed; removal is idempotent.
	if err := s.Events().Delete(ctx, "bris", ev.EventID); err != nil {
		t.Fatalf("Delete event: %v", err)
	}
	if err := s.Events().Delete(ctx, "bris", ev.EventID); err != nil {
		t.Fatalf("Delete event (repeat): %v", err)
	}
	if evs, err := s.Events().List(ctx, "bris"); err != nil || len(evs) != 0 {
		t.Fatalf("List after delete: n=%d err=%v", len(evs), err)
	}
}
