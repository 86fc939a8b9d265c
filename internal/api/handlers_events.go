package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/onoff-automations/schedule-modes/internal/api/respond"
	"github.com/onoff-automations/schedule-modes/internal/engine"
	"github.com/onoff-automations/schedule-modes/internal/model"
)

// EventHandler provides HTTP transport for calendar events and their sensors.
type EventHandler struct {
	engine *engine.Engine
}

func NewEventHandler(e *engine.Engine) *EventHandler {
	return &EventHandler{engine: e}
}

// ListEvents GET /api/modes/{modeKey}/events?from=&to=
// Without from/to the full calendar is returned; with them, events overlapping
// [from, to). Timestamps are RFC 3339.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	q := r.URL.Query()

	var (
		events []*model.CalendarEvent
		err    error
	)
	if q.Get("from") == "" && q.Get("to") == "" {
		events, err = h.engine.ModeEvents(r.Context(), key)
	} else {
		var from, to time.Time
		from, err = time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			respond.WriteBadRequest(w, "invalid from timestamp")
			return
		}
		to, err = time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			respond.WriteBadRequest(w, "invalid to timestamp")
			return
		}
		events, err = h.engine.ListEvents(r.Context(), key, from, to)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}

// CreateEvent POST /api/modes/{modeKey}/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	var req struct {
		Start       time.Time `json:"start"`
		End         time.Time `json:"end"`
		Summary     string    `json:"summary"`
		Description string    `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	created, err := h.engine.CreateEvent(r.Context(), &model.CalendarEvent{
		ModeKey:     key,
		Start:       req.Start,
		End:         req.End,
		Summary:     req.Summary,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, created)
}

// GetEvent GET /api/modes/{modeKey}/events/{eventId}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ev, err := h.engine.GetEvent(r.Context(), vars["modeKey"], vars["eventId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, ev)
}

// UpdateEvent PUT /api/modes/{modeKey}/events/{eventId}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Start       time.Time `json:"start"`
		End         time.Time `json:"end"`
		Summary     string    `json:"summary"`
		Description string    `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	err := h.engine.UpdateEvent(r.Context(), &model.CalendarEvent{
		ModeKey:     vars["modeKey"],
		EventID:     vars["eventId"],
		Start:       req.Start,
		End:         req.End,
		Summary:     req.Summary,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := h.engine.GetEvent(r.Context(), vars["modeKey"], vars["eventId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, updated)
}

// DeleteEvent DELETE /api/modes/{modeKey}/events/{eventId}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.engine.DeleteEvent(r.Context(), vars["modeKey"], vars["eventId"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSensors GET /api/modes/{modeKey}/sensors
func (h *EventHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	sensors, err := h.engine.EventSensors(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"sensors": sensors, "count": len(sensors)})
}
