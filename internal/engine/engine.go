// Package engine implements the mode state reconciliation loop: it resolves
// each mode's activation from its manual switch, calendar and override flag,
// advances per-event sensors, mirrors linked events, and applies manual
// expiry plus the daily auto-reset.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

// Options carries the engine's tuning knobs, derived from configuration by
// the composition root.
type Options struct {
	EnabledModes     []string
	DefaultDurations map[string]int

	TickInterval time.Duration
	Retention    time.Duration
	Location     *time.Location

	// AutoResetEnabled gates the daily reset at AutoResetHour:AutoResetMinute
	// in Location.
	AutoResetEnabled bool
	AutoResetHour    int
	AutoResetMinute  int

	LinkEnabled bool
	LinkSource  string
	LinkTarget  string

	// Clock overrides the time source; nil means time.Now.
	Clock func() time.Time
}

type command struct {
	fn   func(ctx context.Context) error
	done chan error
}

// Engine is the single-process reconciliation engine. All mutations funnel
// through one serialized loop; queries read a mutex-guarded snapshot.
type Engine struct {
	store  store.Store
	opts   Options
	logger zerolog.Logger
	clock  func() time.Time

	commands chan command
	cron     *cron.Cron
	stopped  chan struct{}

	mu        sync.RWMutex
	modes     map[string]*model.Mode
	states    map[string]model.ResolvedState
	agg       model.AggregateView
	lifecycle *lifecycle
	link      *propagator

	persistedArchived int
}

// New builds an engine over the given store. Call Start before using it.
func New(s store.Store, opts Options, logger zerolog.Logger) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	lg := logger.With().Str("component", "engine").Logger()
	return &Engine{
		store:     s,
		opts:      opts,
		logger:    lg,
		clock:     clock,
		commands:  make(chan command),
		stopped:   make(chan struct{}),
		modes:     make(map[string]*model.Mode),
		states:    make(map[string]model.ResolvedState),
		lifecycle: newLifecycle(s.Events(), opts.Retention, lg),
		link:      newPropagator(s.Events(), opts.LinkEnabled, opts.LinkSource, opts.LinkTarget, lg),
	}
}

// Start loads persisted switch state, runs the first reconciliation pass, and
// launches the tick loop plus the daily-reset schedule. It returns once the
// engine is serving; the loop stops when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.loadModes(ctx); err != nil {
		return err
	}
	if err := e.loadArchive(ctx); err != nil {
		return err
	}

	now := e.clock()
	e.mu.Lock()
	e.maybeAutoReset(ctx, now)
	e.tick(ctx, now)
	e.mu.Unlock()

	if e.opts.AutoResetEnabled {
		e.cron = cron.New(cron.WithLocation(e.opts.Location))
		spec := fmt.Sprintf("%d %d * * *", e.opts.AutoResetMinute, e.opts.AutoResetHour)
		if _, err := e.cron.AddFunc(spec, func() { e.enqueueAutoReset(ctx) }); err != nil {
			return errors.Wrap(err, "schedule daily auto-reset")
		}
		e.cron.Start()
	}

	go e.run(ctx)
	e.logger.Info().
		Int("modes", len(e.modes)).
		Dur("tick_interval", e.opts.TickInterval).
		Bool("auto_reset", e.opts.AutoResetEnabled).
		Msg("Engine started")
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.stopped)
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if e.cron != nil {
				e.cron.Stop()
			}
			return
		case <-ticker.C:
			e.mu.Lock()
			e.tick(ctx, e.clock())
			e.mu.Unlock()
		case cmd := <-e.commands:
			cmd.done <- cmd.fn(ctx)
		}
	}
}

// Wait blocks until the loop has exited after context cancellation.
func (e *Engine) Wait() { <-e.stopped }

// do runs fn on the serialized loop and waits for its result.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return errors.New("engine stopped")
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) enqueueAutoReset(ctx context.Context) {
	err := e.do(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.maybeAutoReset(ctx, e.clock())
		e.foldAfterChange()
		return nil
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Daily auto-reset did not run")
	}
}

// loadModes restores persisted switch state and seeds any enabled mode that
// has no record yet.
func (e *Engine) loadModes(ctx context.Context) error {
	stored, err := e.store.Modes().List(ctx)
	if err != nil {
		return errors.Wrap(err, "load persisted modes")
	}
	byKey := make(map[string]*model.Mode, len(stored))
	for _, m := range stored {
		byKey[m.Key] = m
	}

	for _, key := range e.opts.EnabledModes {
		if m, ok := byKey[key]; ok {
			e.modes[key] = m
			continue
		}
		def, _ := model.LookupModeDef(key)
		m := &model.Mode{
			Key:                    key,
			Name:                   def.Name,
			Group:                  def.Group,
			DefaultDurationMinutes: e.opts.DefaultDurations[key],
		}
		if err := e.store.Modes().Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "seed mode %s", key)
		}
		e.modes[key] = m
	}
	return nil
}

// loadArchive restores the archived-event counter and the retained payloads
// from their persisted markers.
func (e *Engine) loadArchive(ctx context.Context) error {
	raw, err := e.store.Modes().GetMarker(ctx, store.MarkerArchivedEvents)
	if err != nil {
		return errors.Wrap(err, "load archived-event counter")
	}
	n := 0
	if raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil {
			return errors.Wrapf(err, "corrupt archived-event counter %q", raw)
		}
	}

	rawLog, err := e.store.Modes().GetMarker(ctx, store.MarkerArchiveLog)
	if err != nil {
		return errors.Wrap(err, "load archived-event log")
	}
	var entries []model.ArchivedEvent
	if rawLog != "" {
		if err := json.Unmarshal([]byte(rawLog), &entries); err != nil {
			return errors.Wrap(err, "corrupt archived-event log")
		}
	}

	e.lifecycle.restoreArchive(n, entries)
	e.persistedArchived = n
	return nil
}

// tick is one full reconciliation pass. A failure in one mode's processing
// never aborts the others; on a provider error the mode keeps its last-known
// resolved state. Callers hold e.mu.
func (e *Engine) tick(ctx context.Context, now time.Time) {
	for _, key := range e.opts.EnabledModes {
		e.expireManual(ctx, e.modes[key], now)
		e.resolveMode(ctx, key, now)
	}
	e.persistArchive(ctx)
	e.agg = foldAggregates(e.states, e.modes, e.lifecycle.archivedCount(), now)
}

// expireManual turns the manual switch off once its expiry has passed.
func (e *Engine) expireManual(ctx context.Context, m *model.Mode, now time.Time) {
	if m == nil || !m.ManualOn || m.ManualExpiresAt == nil || now.Before(*m.ManualExpiresAt) {
		return
	}
	endedAt := *m.ManualExpiresAt
	m.ManualOn = false
	m.ManualStartedAt = nil
	m.ManualExpiresAt = nil
	m.LastManualEnd = &endedAt
	if err := e.store.Modes().Upsert(ctx, m); err != nil {
		e.logger.Warn().Err(err).Str("mode", m.Key).Msg("Failed to persist manual expiry")
	}
	e.logger.Info().Str("mode", m.Key).Time("expired_at", endedAt).Msg("Manual activation expired")
}

// resolveMode refreshes one mode's events, sensors and resolved state.
// Callers hold e.mu.
func (e *Engine) resolveMode(ctx context.Context, key string, now time.Time) {
	m, ok := e.modes[key]
	if !ok {
		return
	}
	events, err := e.store.Events().List(ctx, key)
	if err != nil {
		e.logger.Warn().Err(err).Str("mode", key).Msg("Calendar provider unavailable, keeping last resolved state")
		return
	}
	if removed := e.lifecycle.advance(ctx, key, events, now); removed > 0 {
		// Archival removed events this pass; the list went stale.
		events, err = e.store.Events().List(ctx, key)
		if err != nil {
			e.logger.Warn().Err(err).Str("mode", key).Msg("Calendar provider unavailable, keeping last resolved state")
			return
		}
	}
	e.states[key] = resolve(m, events, now)
}

// maybeAutoReset deactivates every manually-on mode once per calendar day at
// the configured local time. A persisted date marker guards against double
// firing and against re-firing after a restart within the same day. Callers
// hold e.mu.
func (e *Engine) maybeAutoReset(ctx context.Context, now time.Time) {
	if !e.opts.AutoResetEnabled {
		return
	}
	local := now.In(e.opts.Location)
	due := time.Date(local.Year(), local.Month(), local.Day(),
		e.opts.AutoResetHour, e.opts.AutoResetMinute, 0, 0, e.opts.Location)
	if local.Before(due) {
		return
	}
	today := local.Format("2006-01-02")
	last, err := e.store.Modes().GetMarker(ctx, store.MarkerLastAutoReset)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to read auto-reset marker")
		return
	}
	if last == today {
		return
	}

	resetCount := 0
	for _, key := range e.opts.EnabledModes {
		m := e.modes[key]
		if m == nil || !m.ManualOn {
			continue
		}
		endedAt := now
		m.ManualOn = false
		m.ManualStartedAt = nil
		m.ManualExpiresAt = nil
		m.LastManualEnd = &endedAt
		if err := e.store.Modes().Upsert(ctx, m); err != nil {
			e.logger.Warn().Err(err).Str("mode", key).Msg("Failed to persist auto-reset")
			continue
		}
		e.states[key] = e.resolveInMemory(ctx, key, now)
		resetCount++
	}
	if err := e.store.Modes().SetMarker(ctx, store.MarkerLastAutoReset, today); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist auto-reset marker")
		return
	}
	e.logger.Info().Str("date", today).Int("modes_reset", resetCount).Msg("Daily auto-reset applied")
}

func (e *Engine) resolveInMemory(ctx context.Context, key string, now time.Time) model.ResolvedState {
	events, err := e.store.Events().List(ctx, key)
	if err != nil {
		return e.states[key]
	}
	return resolve(e.modes[key], events, now)
}

// persistArchive writes the archived-event counter and payload log whenever
// new entries were archived since the last write.
func (e *Engine) persistArchive(ctx context.Context) {
	n := e.lifecycle.archivedCount()
	if n == e.persistedArchived {
		return
	}
	if raw, err := json.Marshal(e.lifecycle.archivedEvents()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to encode archived-event log")
	} else if err := e.store.Modes().SetMarker(ctx, store.MarkerArchiveLog, string(raw)); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist archived-event log")
	}
	if err := e.store.Modes().SetMarker(ctx, store.MarkerArchivedEvents, strconv.Itoa(n)); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist archived-event counter")
		return
	}
	e.persistedArchived = n
}

// foldAfterChange recomputes aggregates after a mutation. Callers hold e.mu.
func (e *Engine) foldAfterChange() {
	e.agg = foldAggregates(e.states, e.modes, e.lifecycle.archivedCount(), e.clock())
}

// SetManual flips a mode's manual switch. When turning on, durationMinutes
// (or the mode's default when nil) bounds the activation; zero means no
// expiry.
func (e *Engine) SetManual(ctx context.Context, key string, on bool, durationMinutes *int) error {
	if err := e.checkMode(key); err != nil {
		return err
	}
	if durationMinutes != nil && *durationMinutes < 0 {
		return errors.Wrap(model.ErrValidation, "durationMinutes must not be negative")
	}
	return e.do(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		now := e.clock()
		m := e.modes[key]

		if on {
			m.ManualOn = true
			startedAt := now
			m.ManualStartedAt = &startedAt
			minutes := m.DefaultDurationMinutes
			if durationMinutes != nil {
				minutes = *durationMinutes
			}
			if minutes > 0 {
				expiresAt := now.Add(time.Duration(minutes) * time.Minute)
				m.ManualExpiresAt = &expiresAt
			} else {
				m.ManualExpiresAt = nil
			}
		} else {
			if m.ManualOn {
				endedAt := now
				m.LastManualEnd = &endedAt
			}
			m.ManualOn = false
			m.ManualStartedAt = nil
			m.ManualExpiresAt = nil
		}

		if err := e.store.Modes().Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "persist manual state for %s", key)
		}
		e.resolveMode(ctx, key, now)
		e.foldAfterChange()
		e.logger.Info().Str("mode", key).Bool("on", on).Msg("Manual switch set")
		return nil
	})
}

// SetOverride sets a mode's calendar override flag.
func (e *Engine) SetOverride(ctx context.Context, key string, enabled bool) error {
	if err := e.checkMode(key); err != nil {
		return err
	}
	return e.do(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		m := e.modes[key]
		m.OverrideEnabled = enabled
		if err := e.store.Modes().Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "persist override for %s", key)
		}
		e.resolveMode(ctx, key, e.clock())
		e.foldAfterChange()
		e.logger.Info().Str("mode", key).Bool("enabled", enabled).Msg("Override set")
		return nil
	})
}

// CreateEvent validates and stores a calendar event, mirroring it onto the
// linked mode when the event sits on the link's source side.
func (e *Engine) CreateEvent(ctx context.Context, ev *model.CalendarEvent) (*model.CalendarEvent, error) {
	if err := e.checkMode(ev.ModeKey); err != nil {
		return nil, err
	}
	if err := validateBounds(ev); err != nil {
		return nil, err
	}
	var created *model.CalendarEvent
	err := e.do(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		out, err := e.store.Events().Create(ctx, ev)
		if err != nil {
			return errors.Wrapf(err, "create event on %s", ev.ModeKey)
		}
		e.link.onCreate(ctx, out)
		now := e.clock()
		e.resolveMode(ctx, out.ModeKey, now)
		if out.LinkedModeKey != "" {
			e.resolveMode(ctx, out.LinkedModeKey, now)
		}
		e.foldAfterChange()
		created = out
		return nil
	})
	return created, err
}

// UpdateEvent rewrites an event's bounds, summary and description. Bound
// changes on a link-source event re-align the linked event; edits on the
// target side stay local.
func (e *Engine) UpdateEvent(ctx context.Context, ev *model.CalendarEvent) error {
	if err := e.checkMode(ev.ModeKey); err != nil {
		return err
	}
	if err := validateBounds(ev); err != nil {
		return err
	}
	return e.do(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		existing, err := e.store.Events().Get(ctx, ev.ModeKey, ev.EventID)
		if err != nil {
			return err
		}
		existing.Start = ev.Start
		existing.End = ev.End
		existing.Summary = ev.Summary
		existing.Description = ev.Description
		if err := e.store.Events().Update(ctx, existing); err != nil {
			return errors.Wrapf(err, "update event %s on %s", ev.EventID, ev.ModeKey)
		}
		e.link.onUpdate(ctx, existing)
		now := e.clock()
		e.resolveMode(ctx, existing.ModeKey, now)
		if existing.LinkedModeKey != "" {
			e.resolveMode(ctx, existing.LinkedModeKey, now)
		}
		e.foldAfterChange()
		return nil
	})
}

// DeleteEvent removes an event and, for link-source events, its mirrored
// counterpart. Deleting an already-removed event is a no-op.
func (e *Engine) DeleteEvent(ctx context.Context, modeKey, eventID string) error {
	if err := e.checkMode(modeKey); err != nil {
		return err
	}
	return e.do(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		existing, err := e.store.Events().Get(ctx, modeKey, eventID)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.store.Events().Delete(ctx, modeKey, eventID); err != nil {
			return errors.Wrapf(err, "delete event %s on %s", eventID, modeKey)
		}
		e.lifecycle.forget(modeKey, eventID)
		if e.link.onDelete(ctx, existing) {
			// Only the mirror's sensor goes; a target-side delete leaves
			// the source event and its sensor untouched.
			e.lifecycle.forget(existing.LinkedModeKey, existing.LinkedEventID)
		}
		now := e.clock()
		e.resolveMode(ctx, modeKey, now)
		if existing.LinkedModeKey != "" {
			e.resolveMode(ctx, existing.LinkedModeKey, now)
		}
		e.foldAfterChange()
		return nil
	})
}

// ResolvedState returns the last computed snapshot for one mode.
func (e *Engine) ResolvedState(key string) (model.ResolvedState, error) {
	if err := e.checkMode(key); err != nil {
		return model.ResolvedState{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[key], nil
}

// ResolvedStates returns all modes' snapshots ordered by mode key.
func (e *Engine) ResolvedStates() []model.ResolvedState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.ResolvedState, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModeKey < out[j].ModeKey })
	return out
}

// Mode returns a copy of one mode's switch record.
func (e *Engine) Mode(key string) (model.Mode, error) {
	if err := e.checkMode(key); err != nil {
		return model.Mode{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.modes[key], nil
}

// EventSensors returns the mode's live event sensors.
func (e *Engine) EventSensors(key string) ([]model.EventSensor, error) {
	if err := e.checkMode(key); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lifecycle.sensorsFor(key), nil
}

// ArchivedEvents returns the retained payloads of archived events, oldest
// first.
func (e *Engine) ArchivedEvents() []model.ArchivedEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lifecycle.archivedEvents()
}

// Aggregates returns the summary view from the last reconciliation pass.
func (e *Engine) Aggregates() model.AggregateView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg
}

// ListEvents reads a mode's events in [from, to) straight from the provider.
func (e *Engine) ListEvents(ctx context.Context, key string, from, to time.Time) ([]*model.CalendarEvent, error) {
	if err := e.checkMode(key); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, errors.Wrap(model.ErrValidation, "range end must be after range start")
	}
	return e.store.Events().ListRange(ctx, key, from, to)
}

// ModeEvents reads all of a mode's events straight from the provider.
func (e *Engine) ModeEvents(ctx context.Context, key string) ([]*model.CalendarEvent, error) {
	if err := e.checkMode(key); err != nil {
		return nil, err
	}
	return e.store.Events().List(ctx, key)
}

// GetEvent reads one event straight from the provider.
func (e *Engine) GetEvent(ctx context.Context, key, eventID string) (*model.CalendarEvent, error) {
	if err := e.checkMode(key); err != nil {
		return nil, err
	}
	return e.store.Events().Get(ctx, key, eventID)
}

func (e *Engine) checkMode(key string) error {
	for _, k := range e.opts.EnabledModes {
		if k == key {
			return nil
		}
	}
	return errors.Wrapf(model.ErrNotFound, "unknown mode %q", key)
}

func validateBounds(ev *model.CalendarEvent) error {
	if ev.Start.IsZero() || ev.End.IsZero() {
		return errors.Wrap(model.ErrValidation, "event start and end are required")
	}
	if !ev.End.After(ev.Start) {
		return errors.Wrap(model.ErrValidation, "event end must be after start")
	}
	return nil
}
