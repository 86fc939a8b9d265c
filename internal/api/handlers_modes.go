package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onoff-automations/schedule-modes/internal/api/respond"
	"github.com/onoff-automations/schedule-modes/internal/engine"
	"github.com/onoff-automations/schedule-modes/internal/model"
)

// ModeHandler provides HTTP transport for mode state and control.
type ModeHandler struct {
	engine *engine.Engine
}

func NewModeHandler(e *engine.Engine) *ModeHandler {
	return &ModeHandler{engine: e}
}

type modeView struct {
	model.Mode
	State model.ResolvedState `json:"state"`
}

// ListModes GET /api/modes
func (h *ModeHandler) ListModes(w http.ResponseWriter, r *http.Request) {
	states := h.engine.ResolvedStates()
	views := make([]modeView, 0, len(states))
	for _, st := range states {
		m, err := h.engine.Mode(st.ModeKey)
		if err != nil {
			continue
		}
		views = append(views, modeView{Mode: m, State: st})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"modes": views, "count": len(views)})
}

// GetMode GET /api/modes/{modeKey}
func (h *ModeHandler) GetMode(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	m, err := h.engine.Mode(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := h.engine.ResolvedState(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, modeView{Mode: m, State: st})
}

// SetManual POST /api/modes/{modeKey}/manual
func (h *ModeHandler) SetManual(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	var req struct {
		On              bool `json:"on"`
		DurationMinutes *int `json:"durationMinutes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.engine.SetManual(r.Context(), key, req.On, req.DurationMinutes); err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := h.engine.ResolvedState(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, st)
}

// SetOverride POST /api/modes/{modeKey}/override
func (h *ModeHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["modeKey"]
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.engine.SetOverride(r.Context(), key, req.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := h.engine.ResolvedState(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, st)
}
