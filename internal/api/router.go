// Package api wires the HTTP surface over the reconciliation engine.
package api

import (
	"time"

	"github.com/gorilla/mux"

	"github.com/onoff-automations/schedule-modes/internal/api/recovery"
	"github.com/onoff-automations/schedule-modes/internal/engine"
	"github.com/onoff-automations/schedule-modes/internal/health"
)

// NewRouter builds the HTTP router over an already-started engine.
func NewRouter(e *engine.Engine, healthSvc *health.Service, loc *time.Location) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	modeHandler := NewModeHandler(e)
	eventHandler := NewEventHandler(e)
	viewHandler := NewViewHandler(e, loc)
	healthHandler := NewHealthHandler(healthSvc)

	// Health
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// Mode state and control
	router.HandleFunc("/api/modes", modeHandler.ListModes).Methods("GET")
	router.HandleFunc("/api/modes/{modeKey}", modeHandler.GetMode).Methods("GET")
	router.HandleFunc("/api/modes/{modeKey}/manual", modeHandler.SetManual).Methods("POST")
	router.HandleFunc("/api/modes/{modeKey}/override", modeHandler.SetOverride).Methods("POST")

	// Calendar events and sensors
	router.HandleFunc("/api/modes/{modeKey}/events", eventHandler.ListEvents).Methods("GET")
	router.HandleFunc("/api/modes/{modeKey}/events", eventHandler.CreateEvent).Methods("POST")
	router.HandleFunc("/api/modes/{modeKey}/events/{eventId}", eventHandler.GetEvent).Methods("GET")
	router.HandleFunc("/api/modes/{modeKey}/events/{eventId}", eventHandler.UpdateEvent).Methods("PUT")
	router.HandleFunc("/api/modes/{modeKey}/events/{eventId}", eventHandler.DeleteEvent).Methods("DELETE")
	router.HandleFunc("/api/modes/{modeKey}/sensors", eventHandler.ListSensors).Methods("GET")

	// Derived read-only views
	router.HandleFunc("/api/modes/{modeKey}/calendar.ics", viewHandler.GetCalendarFeed).Methods("GET")
	router.HandleFunc("/api/aggregates", viewHandler.GetAggregates).Methods("GET")
	router.HandleFunc("/api/archive", viewHandler.GetArchive).Methods("GET")
	router.HandleFunc("/api/calendar/hebrew", viewHandler.GetHebrewCalendar).Methods("GET")

	return router
}
