package engine

import (
	"sort"
	"time"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

// foldAggregates derives the summary view from the per-mode resolved states.
// It holds no state of its own and is recomputed after every tick.
func foldAggregates(states map[string]model.ResolvedState, modes map[string]*model.Mode, archived int, now time.Time) model.AggregateView {
	agg := model.AggregateView{
		ArchivedEventCount: archived,
		ComputedAt:         now,
	}

	for key, st := range states {
		if !st.Active {
			continue
		}
		if st.ControlledBy == model.ControlCalendar {
			agg.CalendarActiveModes = append(agg.CalendarActiveModes, key)
		}
		if m, ok := modes[key]; ok && m.OverrideEnabled {
			agg.OverrideActiveModes = append(agg.OverrideActiveModes, key)
		}
		if def, ok := model.LookupModeDef(key); ok && def.Group == model.GroupEvent {
			agg.ActiveEventModes = append(agg.ActiveEventModes, key)
		}
	}

	sort.Strings(agg.CalendarActiveModes)
	sort.Strings(agg.OverrideActiveModes)
	sort.Strings(agg.ActiveEventModes)

	agg.AnyCalendarActive = len(agg.CalendarActiveModes) > 0
	agg.AnyActiveWithOverride = len(agg.OverrideActiveModes) > 0
	agg.AnyEventModeActive = len(agg.ActiveEventModes) > 0
	return agg
}
