// Package remote implements the calendar provider contract against a remote
// calendar service speaking this repo's REST API. Mode switch state stays in
// a local store; only events round-trip over HTTP.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

type remoteEvents struct {
	client *resty.Client
}

// NewEvents returns a store.Events backed by the calendar service at baseURL.
func NewEvents(baseURL string) store.Events {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &remoteEvents{client: c}
}

func (r *remoteEvents) Create(ctx context.Context, ev *model.CalendarEvent) (*model.CalendarEvent, error) {
	var out model.CalendarEvent
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(ev).
		SetResult(&out).
		Post(fmt.Sprintf("/api/modes/%s/events", ev.ModeKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, statusError(resp)
	}
	return &out, nil
}

func (r *remoteEvents) Update(ctx context.Context, ev *model.CalendarEvent) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(ev).
		Put(fmt.Sprintf("/api/modes/%s/events/%s", ev.ModeKey, ev.EventID))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (r *remoteEvents) Delete(ctx context.Context, modeKey, eventID string) error {
	resp, err := r.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/api/modes/%s/events/%s", modeKey, eventID))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	// 404 degrades to a no-op; removal is idempotent.
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusNotFound {
		return statusError(resp)
	}
	return nil
}

func (r *remoteEvents) Get(ctx context.Context, modeKey, eventID string) (*model.CalendarEvent, error) {
	var out model.CalendarEvent
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/modes/%s/events/%s", modeKey, eventID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("event %s/%s: %w", modeKey, eventID, model.ErrNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(resp)
	}
	return &out, nil
}

func (r *remoteEvents) List(ctx context.Context, modeKey string) ([]*model.CalendarEvent, error) {
	return r.list(ctx, modeKey, map[string]string{})
}

func (r *remoteEvents) ListRange(ctx context.Context, modeKey string, from, to time.Time) ([]*model.CalendarEvent, error) {
	return r.list(ctx, modeKey, map[string]string{
		"from": from.Format(time.RFC3339),
		"to":   to.Format(time.RFC3339),
	})
}

func (r *remoteEvents) list(ctx context.Context, modeKey string, params map[string]string) ([]*model.CalendarEvent, error) {
	var out struct {
		Events []*model.CalendarEvent `json:"events"`
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get(fmt.Sprintf("/api/modes/%s/events", modeKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(resp)
	}
	return out.Events, nil
}

func statusError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: calendar service status %d", model.ErrProviderUnavailable, resp.StatusCode())
	}
	return fmt.Errorf("calendar service status %d: %s", resp.StatusCode(), resp.String())
}
