// Package ics renders a mode's calendar as an iCalendar document so external
// calendar clients can subscribe to it read-only.
package ics

import (
	"bytes"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

// Export serializes the mode's events into a VCALENDAR payload. Event ids are
// namespaced by mode key so feeds for different modes never collide.
func Export(modeKey string, events []*model.CalendarEvent) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//onoff-automations//schedule-modes//EN")
	cal.SetName(model.ModeName(modeKey))

	for _, ev := range events {
		ve := cal.AddEvent(fmt.Sprintf("%s-%s@schedule-modes", modeKey, ev.EventID))
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetSummary(ev.Summary)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Created.IsZero() {
			ve.SetDtStampTime(time.Now().UTC())
		} else {
			ve.SetDtStampTime(ev.Created.UTC())
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
