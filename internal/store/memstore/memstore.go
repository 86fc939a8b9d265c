// Package memstore provides an in-memory store.Store used by unit tests and
// the "memory" driver for throwaway development runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

type memStore struct {
	mu      sync.RWMutex
	modes   map[string]model.Mode
	events  map[string]map[string]model.CalendarEvent // modeKey -> eventID -> event
	markers map[string]string
}

// New returns an empty in-memory store.
func New() store.Store {
	return &memStore{
		modes:   map[string]model.Mode{},
		events:  map[string]map[string]model.CalendarEvent{},
		markers: map[string]string{},
	}
}

func (s *memStore) Modes() store.Modes   { return (*memModes)(s) }
func (s *memStore) Events() store.Events { return (*memEvents)(s) }

func (s *memStore) HealthPing(context.Context) error { return nil }
func (s *memStore) Close() error                     { return nil }

// --- Modes ---

type memModes memStore

func (m *memModes) Upsert(_ context.Context, md *model.Mode) error {
	if md.Key == "" {
		return fmt.Errorf("%w: mode key is empty", model.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[md.Key] = *md
	return nil
}

func (m *memModes) Get(_ context.Context, key string) (*model.Mode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.modes[key]
	if !ok {
		return nil, fmt.Errorf("mode %q: %w", key, model.ErrNotFound)
	}
	out := md
	return &out, nil
}

func (m *memModes) List(_ context.Context) ([]*model.Mode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Mode, 0, len(m.modes))
	for _, md := range m.modes {
		c := md
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memModes) GetMarker(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markers[name], nil
}

func (m *memModes) SetMarker(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[name] = value
	return nil
}

// --- Events ---

type memEvents memStore

func (e *memEvents) Create(_ context.Context, ev *model.CalendarEvent) (*model.CalendarEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	byID := e.events[ev.ModeKey]
	if byID == nil {
		byID = map[string]model.CalendarEvent{}
		e.events[ev.ModeKey] = byID
	}
	if _, exists := byID[ev.EventID]; exists {
		return nil, fmt.Errorf("event %s/%s: %w", ev.ModeKey, ev.EventID, model.ErrConflict)
	}
	out := *ev
	if out.Created.IsZero() {
		out.Created = time.Now().UTC()
	}
	byID[ev.EventID] = out
	return &out, nil
}

func (e *memEvents) Update(_ context.Context, ev *model.CalendarEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	byID := e.events[ev.ModeKey]
	if _, ok := byID[ev.EventID]; !ok {
		return fmt.Errorf("event %s/%s: %w", ev.ModeKey, ev.EventID, model.ErrNotFound)
	}
	byID[ev.EventID] = *ev
	return nil
}

func (e *memEvents) Delete(_ context.Context, modeKey, eventID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.events[modeKey], eventID)
	return nil
}

func (e *memEvents) Get(_ context.Context, modeKey, eventID string) (*model.CalendarEvent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ev, ok := e.events[modeKey][eventID]
	if !ok {
		return nil, fmt.Errorf("event %s/%s: %w", modeKey, eventID, model.ErrNotFound)
	}
	out := ev
	return &out, nil
}

func (e *memEvents) List(_ context.Context, modeKey string) ([]*model.CalendarEvent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*model.CalendarEvent
	for _, ev := range e.events[modeKey] {
		c := ev
		out = append(out, &c)
	}
	sortEvents(out)
	return out, nil
}

func (e *memEvents) ListRange(_ context.Context, modeKey string, from, to time.Time) ([]*model.CalendarEvent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*model.CalendarEvent
	for _, ev := range e.events[modeKey] {
		if ev.Start.Before(to) && ev.End.After(from) {
			c := ev
			out = append(out, &c)
		}
	}
	sortEvents(out)
	return out, nil
}

func sortEvents(evs []*model.CalendarEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].EventID < evs[j].EventID
	})
}
