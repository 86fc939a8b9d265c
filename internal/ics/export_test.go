package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

func TestExportProducesSubscribableFeed(t *testing.T) {
	start := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	events := []*model.CalendarEvent{
		{
			EventID: "e1",
			ModeKey: "bris",
			Start:   start,
			End:     start.Add(2 * time.Hour),
			Summary: "Bris for the Katz family",
			Created: start.Add(-24 * time.Hour),
		},
	}

	out, err := Export("bris", events)
	require.NoError(t, err)
	body := string(out)

	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Contains(t, body, "UID:bris-e1@schedule-modes")
	assert.Contains(t, body, "DTSTART:20260310T080000Z")
	assert.Contains(t, body, "DTEND:20260310T100000Z")
	assert.Contains(t, body, "SUMMARY:Bris for the Katz family")
}

func TestExportEmptyCalendar(t *testing.T) {
	out, err := Export("bris", nil)
	require.NoError(t, err)
	body := string(out)
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.NotContains(t, body, "BEGIN:VEVENT")
}
