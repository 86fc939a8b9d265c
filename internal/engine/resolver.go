package engine

import (
	"sort"
	"time"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

// resolve computes a mode's activation snapshot from its switch state and
// calendar events at the given instant. It is a pure function; it never
// mutates the mode or the events.
//
// Calendar activation wins attribute reporting over a simultaneous manual-on
// while override is off, but the manual flag is left untouched so the mode
// stays active under manual control when the event ends.
func resolve(mode *model.Mode, events []*model.CalendarEvent, now time.Time) model.ResolvedState {
	st := model.ResolvedState{
		ModeKey:         mode.Key,
		OverrideEnabled: mode.OverrideEnabled,
		ResolvedAt:      now,
	}

	current := currentEvent(events, now)
	next := nextEvent(events, now)

	if next != nil {
		start, end := next.Start, next.End
		st.NextCalendarStart = &start
		st.NextCalendarEnd = &end
	}

	switch {
	case !mode.OverrideEnabled && current != nil:
		st.Active = true
		st.ControlledBy = model.ControlCalendar
		start, end := current.Start, current.End
		st.ActiveStarted = &start
		st.ActiveEnd = &end
	case mode.ManualOn:
		st.Active = true
		st.ControlledBy = model.ControlManual
		st.ActiveStarted = mode.ManualStartedAt
		st.ActiveEnd = mode.ManualExpiresAt
	default:
		st.Active = false
		st.ControlledBy = model.ControlNone
	}

	st.LastEnded = lastEnded(mode, events, now)
	return st
}

// currentEvent picks the event covering now. Overlapping events tie-break by
// earliest start, then event id ascending.
func currentEvent(events []*model.CalendarEvent, now time.Time) *model.CalendarEvent {
	var cur *model.CalendarEvent
	for _, ev := range events {
		if now.Before(ev.Start) || !now.Before(ev.End) {
			continue
		}
		if cur == nil || earlier(ev, cur) {
			cur = ev
		}
	}
	return cur
}

// nextEvent picks the earliest event starting strictly after now.
func nextEvent(events []*model.CalendarEvent, now time.Time) *model.CalendarEvent {
	var next *model.CalendarEvent
	for _, ev := range events {
		if !ev.Start.After(now) {
			continue
		}
		if next == nil || earlier(ev, next) {
			next = ev
		}
	}
	return next
}

func earlier(a, b *model.CalendarEvent) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.EventID < b.EventID
}

// lastEnded folds the most recent finished session across calendar events and
// the last manual deactivation, maximal by end.
func lastEnded(mode *model.Mode, events []*model.CalendarEvent, now time.Time) *time.Time {
	var ends []time.Time
	for _, ev := range events {
		if !ev.End.After(now) {
			ends = append(ends, ev.End)
		}
	}
	if mode.LastManualEnd != nil && !mode.LastManualEnd.After(now) {
		ends = append(ends, *mode.LastManualEnd)
	}
	if len(ends) == 0 {
		return nil
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].After(ends[j]) })
	latest := ends[0]
	return &latest
}
