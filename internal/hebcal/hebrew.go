// Package hebcal derives the read-only Hebrew-date calendar: one all-day
// label per civil day with holiday names when present. It sits outside the
// engine's write path.
package hebcal

import (
	"time"

	"github.com/hebcal/hebcal-go/hdate"
	"github.com/hebcal/hebcal-go/hebcal"
	"github.com/pkg/errors"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

const civilDate = "2006-01-02"

// Days returns one entry per civil day starting at from, count days long.
// Labels render the Hebrew date; holidays come from the standard diaspora
// calendar.
func Days(from time.Time, count int, loc *time.Location) ([]model.HebrewDay, error) {
	if count <= 0 {
		return nil, errors.New("day count must be positive")
	}
	if loc == nil {
		loc = time.Local
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, count-1)

	holidays, err := holidaysByDay(start, end)
	if err != nil {
		return nil, errors.Wrap(err, "compute holiday calendar")
	}

	out := make([]model.HebrewDay, 0, count)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		hd := hdate.FromGregorian(d.Year(), d.Month(), d.Day())
		key := d.Format(civilDate)
		out = append(out, model.HebrewDay{
			Date:     key,
			Label:    hd.String(),
			Holidays: holidays[key],
		})
	}
	return out, nil
}

func holidaysByDay(start, end time.Time) (map[string][]string, error) {
	opts := &hebcal.CalOptions{
		Start: hdate.FromGregorian(start.Year(), start.Month(), start.Day()),
		End:   hdate.FromGregorian(end.Year(), end.Month(), end.Day()),
	}
	events, err := hebcal.HebrewCalendar(opts)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]string)
	for _, ev := range events {
		day := ev.GetDate().Gregorian().Format(civilDate)
		byDay[day] = append(byDay[day], ev.Render("en"))
	}
	return byDay, nil
}
