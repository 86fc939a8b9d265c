package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

// propagator mirrors source-mode events onto a linked target mode. Mirroring
// is directional and best-effort: target-side failures are logged and never
// fail the source mutation, and target-side edits are never propagated back.
type propagator struct {
	events  store.Events
	enabled bool
	source  string
	target  string
	logger  zerolog.Logger
}

func newPropagator(events store.Events, enabled bool, source, target string, logger zerolog.Logger) *propagator {
	return &propagator{
		events:  events,
		enabled: enabled,
		source:  source,
		target:  target,
		logger:  logger,
	}
}

// onCreate mirrors a freshly created source event onto the target mode and
// records the linked reference on both sides. It returns the updated source
// event so the caller can persist the back-reference.
func (p *propagator) onCreate(ctx context.Context, src *model.CalendarEvent) {
	if !p.applies(src) {
		return
	}

	mirror := &model.CalendarEvent{
		ModeKey:       p.target,
		Start:         src.Start,
		End:           src.End,
		Summary:       model.ModeName(p.source) + ": " + src.Summary,
		Description:   src.Description,
		LinkedModeKey: src.ModeKey,
		LinkedEventID: src.EventID,
	}
	created, err := p.events.Create(ctx, mirror)
	if err != nil {
		p.warn(err, src, "Linked event creation failed")
		return
	}

	src.LinkedModeKey = created.ModeKey
	src.LinkedEventID = created.EventID
	if err := p.events.Update(ctx, src); err != nil {
		p.warn(err, src, "Failed to record linked reference on source event")
	}
}

// onUpdate re-aligns the linked event's bounds with the source. Summary and
// description stay independent per mode.
func (p *propagator) onUpdate(ctx context.Context, src *model.CalendarEvent) {
	if !p.applies(src) || src.LinkedEventID == "" {
		return
	}

	linked, err := p.events.Get(ctx, src.LinkedModeKey, src.LinkedEventID)
	if err != nil {
		p.warn(err, src, "Linked event lookup failed")
		return
	}
	linked.Start = src.Start
	linked.End = src.End
	if err := p.events.Update(ctx, linked); err != nil {
		p.warn(err, src, "Linked event update failed")
	}
}

// onDelete removes the linked event so no orphan survives its trigger. It
// reports whether the linked counterpart was actually removed, so the caller
// knows when its sensor can go too. Deleting the target side never touches
// the source event.
func (p *propagator) onDelete(ctx context.Context, src *model.CalendarEvent) bool {
	if !p.applies(src) || src.LinkedEventID == "" {
		return false
	}
	if err := p.events.Delete(ctx, src.LinkedModeKey, src.LinkedEventID); err != nil {
		p.warn(err, src, "Linked event deletion failed")
		return false
	}
	return true
}

// applies reports whether the event sits on the source side of the link.
func (p *propagator) applies(ev *model.CalendarEvent) bool {
	return p.enabled && ev.ModeKey == p.source
}

func (p *propagator) warn(err error, src *model.CalendarEvent, msg string) {
	p.logger.Warn().Err(err).
		Str("source_mode", src.ModeKey).
		Str("event_id", src.EventID).
		Str("target_mode", p.target).
		Msg(msg)
}
