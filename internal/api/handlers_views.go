package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/onoff-automations/schedule-modes/internal/api/respond"
	"github.com/onoff-automations/schedule-modes/internal/engine"
	"github.com/onoff-automations/schedule-modes/internal/hebcal"
	"github.com/onoff-automations/schedule-modes/internal/ics"
)

// ViewHandler serves the derived read-only views: aggregates, the event
// archive, per-mode iCalendar feeds and the Hebrew-date calendar.
type ViewHandler struct {
	engine *engine.Engine
	loc    *time.Location
}

func NewViewHandler(e *engine.Engine, loc *time.Location) *ViewHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ViewHandler{engine: e, loc: loc}
}

// GetAggregates GET /api/aggregates
func (h *ViewHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, h.engine.Aggregates())
}

// GetArchive GET /api/archive
func (h *ViewHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	events := h.engine.ArchivedEvents()
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"archivedEventCount": h.engine.Aggregates().ArchivedEventCount,
		"events":             events,
		"count":              len(events),
	})
}

// GetCalendarFeed GET /api/modes/{modeKey}/calendar.ics
func (h *ViewHandler) GetCalendarFeed(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	events, err := h.engine.ModeEvents(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	payload, err := ics.Export(key, events)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// GetHebrewCalendar GET /api/calendar/hebrew?days=N
func (h *ViewHandler) GetHebrewCalendar(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 366 {
			respond.WriteBadRequest(w, "days must be between 1 and 366")
			return
		}
		days = n
	}
	entries, err := hebcal.Days(time.Now().In(h.loc), days, h.loc)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"days": entries, "count": len(entries)})
}
