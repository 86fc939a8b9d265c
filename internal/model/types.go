package model

import "time"

// ControlSource identifies which input currently drives a mode's activation.
type ControlSource string

const (
	ControlManual   ControlSource = "manual"
	ControlCalendar ControlSource = "calendar"
	ControlNone     ControlSource = ""
)

// Mode is a named on/off condition with manual and calendar-driven control.
// ManualExpiresAt is set only while ManualOn is true and a duration applies;
// it is cleared whenever ManualOn transitions to false.
type Mode struct {
	Key                    string     `json:"key"`
	Name                   string     `json:"name"`
	Group                  string     `json:"group"`
	ManualOn               bool       `json:"manualOn"`
	ManualStartedAt        *time.Time `json:"manualStartedAt,omitempty"`
	ManualExpiresAt        *time.Time `json:"manualExpiresAt,omitempty"`
	OverrideEnabled        bool       `json:"overrideEnabled"`
	DefaultDurationMinutes int        `json:"defaultDurationMinutes"`
	LastManualEnd          *time.Time `json:"lastManualEnd,omitempty"`
}

// CalendarEvent is one scheduled activity window on a mode's calendar.
// LinkedModeKey/LinkedEventID reference the mirrored counterpart when link
// propagation created one; both are empty otherwise.
type CalendarEvent struct {
	EventID       string    `json:"eventId"`
	ModeKey       string    `json:"modeKey"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description,omitempty"`
	LinkedModeKey string    `json:"linkedModeKey,omitempty"`
	LinkedEventID string    `json:"linkedEventId,omitempty"`
	Created       time.Time `json:"created"`
}

// ResolvedState is the computed activation snapshot for a mode at a point in
// time. It is derived on every tick and mutation, never stored.
type ResolvedState struct {
	ModeKey           string        `json:"modeKey"`
	Active            bool          `json:"active"`
	ControlledBy      ControlSource `json:"controlledBy"`
	ActiveStarted     *time.Time    `json:"activeStarted,omitempty"`
	ActiveEnd         *time.Time    `json:"activeEnd,omitempty"`
	LastEnded         *time.Time    `json:"lastEnded,omitempty"`
	NextCalendarStart *time.Time    `json:"nextCalendarStart,omitempty"`
	NextCalendarEnd   *time.Time    `json:"nextCalendarEnd,omitempty"`
	OverrideEnabled   bool          `json:"overrideEnabled"`
	ResolvedAt        time.Time     `json:"resolvedAt"`
}

// EventPhase is the temporal phase of a tracked calendar event.
type EventPhase string

const (
	PhaseUpcoming EventPhase = "upcoming"
	PhaseRunning  EventPhase = "running"
	PhaseEnded    EventPhase = "ended"
)

// PhaseOf computes an event's phase from its bounds. It is a pure function of
// (start, end, now).
func PhaseOf(start, end, now time.Time) EventPhase {
	switch {
	case now.Before(start):
		return PhaseUpcoming
	case now.Before(end):
		return PhaseRunning
	default:
		return PhaseEnded
	}
}

// EventSensor tracks one calendar event's temporal phase. Sensors are created
// the first time their event is observed and updated in place afterwards so
// their identity stays stable for the event's whole life.
type EventSensor struct {
	ModeKey         string     `json:"modeKey"`
	EventID         string     `json:"eventId"`
	Summary         string     `json:"summary"`
	Phase           EventPhase `json:"phase"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationSeconds float64    `json:"durationSeconds"`
}

// ArchivedEvent preserves a removed event's payload for the audit archive,
// both for events garbage-collected after retention and for events that
// disappeared from the provider out of band.
type ArchivedEvent struct {
	ModeKey     string    `json:"modeKey"`
	EventID     string    `json:"eventId"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ArchivedAt  time.Time `json:"archivedAt"`
}

// AggregateView folds all modes' resolved states into summary facts.
type AggregateView struct {
	AnyCalendarActive     bool      `json:"anyCalendarActive"`
	CalendarActiveModes   []string  `json:"calendarActiveModes"`
	AnyActiveWithOverride bool      `json:"anyActiveWithOverride"`
	OverrideActiveModes   []string  `json:"overrideActiveModes"`
	AnyEventModeActive    bool      `json:"anyEventModeActive"`
	ActiveEventModes      []string  `json:"activeEventModes"`
	ArchivedEventCount    int       `json:"archivedEventCount"`
	ComputedAt            time.Time `json:"computedAt"`
}

// HebrewDay is one entry of the informational Hebrew-date calendar: an
// all-day label for a single civil day, with holiday names when present.
type HebrewDay struct {
	Date     string   `json:"date"` // YYYY-MM-DD
	Label    string   `json:"label"`
	Holidays []string `json:"holidays,omitempty"`
}
