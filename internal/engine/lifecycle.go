package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

type sensorKey struct {
	modeKey string
	eventID string
}

// maxArchiveEntries bounds the retained archive payloads; the total counter
// keeps growing past the bound.
const maxArchiveEntries = 200

// lifecycle maintains one sensor per observed calendar event, advancing its
// phase on every pass and removing the sensor together with its backing event
// once the retention window after the event's end has elapsed. Removed events
// keep their payload in a bounded archive so they stay inspectable.
//
// Callers are expected to serialize access; lifecycle holds no lock of its own.
type lifecycle struct {
	events    store.Events
	retention time.Duration
	logger    zerolog.Logger

	sensors  map[sensorKey]*model.EventSensor
	archive  []model.ArchivedEvent
	archived int
}

func newLifecycle(events store.Events, retention time.Duration, logger zerolog.Logger) *lifecycle {
	return &lifecycle{
		events:    events,
		retention: retention,
		logger:    logger,
		sensors:   make(map[sensorKey]*model.EventSensor),
	}
}

// advance reconciles the sensor set for one mode against its current events.
// It returns the number of events it removed from the store during this pass,
// so callers know whether the event list they hold went stale. Sensors are
// updated in place so their identity stays stable for the event's whole life.
func (l *lifecycle) advance(ctx context.Context, modeKey string, events []*model.CalendarEvent, now time.Time) int {
	seen := make(map[sensorKey]bool, len(events))
	removedNow := 0

	for _, ev := range events {
		k := sensorKey{modeKey: modeKey, eventID: ev.EventID}
		seen[k] = true

		if now.Sub(ev.End) >= l.retention {
			if l.archiveEvent(ctx, ev, now) {
				delete(l.sensors, k)
				removedNow++
			}
			continue
		}

		s, ok := l.sensors[k]
		if !ok {
			s = &model.EventSensor{ModeKey: modeKey, EventID: ev.EventID}
			l.sensors[k] = s
		}
		s.Summary = ev.Summary
		s.Start = ev.Start
		s.End = ev.End
		s.DurationSeconds = ev.End.Sub(ev.Start).Seconds()
		s.Phase = model.PhaseOf(ev.Start, ev.End, now)
	}

	// Events that disappeared out of band keep their last observed payload
	// in the archive before their sensor goes away.
	for k, s := range l.sensors {
		if k.modeKey == modeKey && !seen[k] {
			l.record(model.ArchivedEvent{
				ModeKey:    k.modeKey,
				EventID:    k.eventID,
				Summary:    s.Summary,
				Start:      s.Start,
				End:        s.End,
				ArchivedAt: now,
			})
			delete(l.sensors, k)
			l.logger.Info().
				Str("mode", k.modeKey).
				Str("event_id", k.eventID).
				Msg("Archived event removed outside the service")
		}
	}

	return removedNow
}

// archiveEvent permanently removes an event past its retention window,
// keeping its payload in the archive. Removal is idempotent; a failure
// leaves the event for the next pass.
func (l *lifecycle) archiveEvent(ctx context.Context, ev *model.CalendarEvent, now time.Time) bool {
	if err := l.events.Delete(ctx, ev.ModeKey, ev.EventID); err != nil {
		l.logger.Warn().Err(err).
			Str("mode", ev.ModeKey).
			Str("event_id", ev.EventID).
			Msg("Failed to archive ended event")
		return false
	}
	l.record(model.ArchivedEvent{
		ModeKey:     ev.ModeKey,
		EventID:     ev.EventID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       ev.Start,
		End:         ev.End,
		ArchivedAt:  now,
	})
	l.logger.Info().
		Str("mode", ev.ModeKey).
		Str("event_id", ev.EventID).
		Str("summary", ev.Summary).
		Msg("Archived ended event")
	return true
}

// record appends one archive entry, trimming the oldest entries past the
// bound. The counter always moves with the append.
func (l *lifecycle) record(a model.ArchivedEvent) {
	l.archive = append(l.archive, a)
	if len(l.archive) > maxArchiveEntries {
		l.archive = l.archive[len(l.archive)-maxArchiveEntries:]
	}
	l.archived++
}

// forget drops the sensor for a deleted event. Safe to call when no sensor
// exists.
func (l *lifecycle) forget(modeKey, eventID string) {
	delete(l.sensors, sensorKey{modeKey: modeKey, eventID: eventID})
}

// sensorsFor returns the mode's sensors ordered by start, then event id.
func (l *lifecycle) sensorsFor(modeKey string) []model.EventSensor {
	var out []model.EventSensor
	for k, s := range l.sensors {
		if k.modeKey == modeKey {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

func (l *lifecycle) archivedCount() int { return l.archived }

// archivedEvents returns a copy of the retained archive payloads, oldest
// first.
func (l *lifecycle) archivedEvents() []model.ArchivedEvent {
	out := make([]model.ArchivedEvent, len(l.archive))
	copy(out, l.archive)
	return out
}

// restoreArchive seeds the counter and payload list from persisted state.
func (l *lifecycle) restoreArchive(count int, entries []model.ArchivedEvent) {
	l.archived = count
	l.archive = entries
	if len(l.archive) > maxArchiveEntries {
		l.archive = l.archive[len(l.archive)-maxArchiveEntries:]
	}
}
