package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onoff-automations/schedule-modes/internal/engine"
	"github.com/onoff-automations/schedule-modes/internal/health"
	"github.com/onoff-automations/schedule-modes/internal/model"
	"github.com/onoff-automations/schedule-modes/internal/store"
	"github.com/onoff-automations/schedule-modes/internal/store/memstore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, memstore.New())
}

func newTestServerWith(t *testing.T, s store.Store) *httptest.Server {
	t.Helper()
	e := engine.New(s, engine.Options{
		EnabledModes: []string{"bris", "no_tachnun", "home"},
		TickInterval: time.Hour,
		Retention:    24 * time.Hour,
		Location:     time.UTC,
		LinkEnabled:  true,
		LinkSource:   "bris",
		LinkTarget:   "no_tachnun",
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))

	svc := health.NewService(zerolog.Nop())
	go svc.Start(ctx, 10*time.Millisecond)

	srv := httptest.NewServer(NewRouter(e, svc, time.UTC))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		e.Wait()
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestListAndGetModes(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/modes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Count int `json:"count"`
		Modes []struct {
			Key   string              `json:"key"`
			State model.ResolvedState `json:"state"`
		} `json:"modes"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 3, list.Count)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/modes/bris", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one struct {
		Key   string              `json:"key"`
		State model.ResolvedState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &one))
	assert.Equal(t, "bris", one.Key)
	assert.False(t, one.State.Active)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/modes/disco_mode", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManualToggleEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/modes/bris/manual",
		map[string]interface{}{"on": true, "durationMinutes": 45})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st model.ResolvedState
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.Active)
	assert.Equal(t, model.ControlManual, st.ControlledBy)
	require.NotNil(t, st.ActiveEnd)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/modes/bris/manual",
		map[string]interface{}{"on": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.False(t, st.Active)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/modes/bris/manual",
		map[string]interface{}{"on": true, "durationMinutes": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventCRUDAndLinkedMirror(t *testing.T) {
	srv := newTestServer(t)
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Minute)
	end := start.Add(3 * time.Hour)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/modes/bris/events",
		map[string]interface{}{"start": start, "end": end, "summary": "Bris"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.CalendarEvent
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.EventID)
	assert.Equal(t, "no_tachnun", created.LinkedModeKey)

	// Running event activates the mode.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/modes/bris", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view struct {
		State model.ResolvedState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.True(t, view.State.Active)
	assert.Equal(t, model.ControlCalendar, view.State.ControlledBy)

	// The mirror shows up on the target mode's calendar.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/modes/no_tachnun/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Count  int                    `json:"count"`
		Events []*model.CalendarEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Equal(t, 1, listed.Count)

	// Update shifts both sides' bounds.
	newEnd := end.Add(time.Hour)
	url := fmt.Sprintf("%s/api/modes/bris/events/%s", srv.URL, created.EventID)
	resp, _ = doJSON(t, http.MethodPut, url,
		map[string]interface{}{"start": start, "end": newEnd, "summary": "Bris"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/modes/no_tachnun/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Equal(t, 1, listed.Count)
	assert.True(t, listed.Events[0].End.Equal(newEnd))

	// Delete removes the mirror too.
	resp, _ = doJSON(t, http.MethodDelete, url, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/modes/no_tachnun/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Equal(t, 0, listed.Count)
}

func TestEventValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	now := time.Now().UTC()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/modes/bris/events",
		map[string]interface{}{"start": now, "end": now.Add(-time.Hour), "summary": "Backwards"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet,
		srv.URL+"/api/modes/bris/events?from=yesterday&to=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/modes/disco_mode/events",
		map[string]interface{}{"start": now, "end": now.Add(time.Hour), "summary": "Nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSensorsAndAggregates(t *testing.T) {
	srv := newTestServer(t)
	start := time.Now().UTC().Add(-time.Hour)
	end := start.Add(2 * time.Hour)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/modes/home/events",
		map[string]interface{}{"start": start, "end": end, "summary": "Guests"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/modes/home/sensors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sensors struct {
		Count   int                 `json:"count"`
		Sensors []model.EventSensor `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(body, &sensors))
	require.Equal(t, 1, sensors.Count)
	assert.Equal(t, model.PhaseRunning, sensors.Sensors[0].Phase)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/aggregates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agg model.AggregateView
	require.NoError(t, json.Unmarshal(body, &agg))
	assert.True(t, agg.AnyCalendarActive)
	assert.Contains(t, agg.CalendarActiveModes, "home")
	assert.True(t, agg.AnyEventModeActive)
}

func TestCalendarFeedEndpoint(t *testing.T) {
	srv := newTestServer(t)
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/modes/home/events",
		map[string]interface{}{"start": start, "end": start.Add(time.Hour), "summary": "Guests"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/modes/home/calendar.ics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")
	assert.Contains(t, string(body), "SUMMARY:Guests")
}

func TestHebrewCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/calendar/hebrew?days=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Count int               `json:"count"`
		Days  []model.HebrewDay `json:"days"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 3, out.Count)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/calendar/hebrew?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	assert.Eventually(t, func() bool {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
		return resp.StatusCode == http.StatusOK
	}, time.Second, 20*time.Millisecond)
}

func TestArchiveEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/archive", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		ArchivedEventCount int                   `json:"archivedEventCount"`
		Events             []model.ArchivedEvent `json:"events"`
		Count              int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 0, out.ArchivedEventCount)
	assert.Equal(t, 0, out.Count)
	assert.Empty(t, out.Events)
}

func TestArchiveEndpointReturnsRetainedPayloads(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	archived := []model.ArchivedEvent{{
		ModeKey:    "bris",
		EventID:    "e1",
		Summary:    "Bris",
		Start:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		ArchivedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
	}}
	raw, err := json.Marshal(archived)
	require.NoError(t, err)
	require.NoError(t, s.Modes().SetMarker(ctx, store.MarkerArchiveLog, string(raw)))
	require.NoError(t, s.Modes().SetMarker(ctx, store.MarkerArchivedEvents, "1"))

	srv := newTestServerWith(t, s)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/archive", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		ArchivedEventCount int                   `json:"archivedEventCount"`
		Events             []model.ArchivedEvent `json:"events"`
		Count              int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.ArchivedEventCount)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "e1", out.Events[0].EventID)
	assert.Equal(t, "Bris", out.Events[0].Summary)
	assert.True(t, out.Events[0].ArchivedAt.Equal(archived[0].ArchivedAt))
}
