package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

func TestResolveDefaultsFillsEnabledModes(t *testing.T) {
	cfg := NewForTesting()
	cfg.EnabledModes = nil
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, model.AllModeKeys(), cfg.EnabledModes)
}

func TestResolveDefaultsRejectsBadDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.StoreDriver = "mongodb"
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsPostgresRequiresDSN(t *testing.T) {
	cfg := NewForTesting()
	cfg.StoreDriver = "postgres"
	cfg.PostgresDSN = ""
	assert.Error(t, cfg.ResolveDefaults())

	cfg.PostgresDSN = "postgres://localhost/modes"
	assert.NoError(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsRemoteRequiresURL(t *testing.T) {
	cfg := NewForTesting()
	cfg.CalendarProvider = "remote"
	cfg.RemoteCalendarURL = ""
	assert.Error(t, cfg.ResolveDefaults())

	cfg.RemoteCalendarURL = "http://calendar:8080"
	assert.NoError(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsValidatesAutoResetTime(t *testing.T) {
	for _, tc := range []struct {
		in string
		ok bool
	}{
		{"", true},
		{"03:30", true},
		{"23:59", true},
		{"24:00", false},
		{"7pm", false},
		{"07:60", false},
	} {
		cfg := NewForTesting()
		cfg.AutoResetTime = tc.in
		err := cfg.ResolveDefaults()
		if tc.ok {
			assert.NoError(t, err, "AUTO_RESET_TIME=%q", tc.in)
		} else {
			assert.Error(t, err, "AUTO_RESET_TIME=%q", tc.in)
		}
	}
}

func TestResolveDefaultsRejectsUnknownModeKeys(t *testing.T) {
	cfg := NewForTesting()
	cfg.EnabledModes = []string{"bris", "disco_mode"}
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsLinkValidation(t *testing.T) {
	cfg := NewForTesting()
	cfg.LinkEnabled = true
	cfg.LinkSourceMode = "bris"
	cfg.LinkTargetMode = "bris"
	assert.Error(t, cfg.ResolveDefaults())

	cfg.LinkTargetMode = "no_tachnun"
	assert.NoError(t, cfg.ResolveDefaults())
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("04:05")
	require.NoError(t, err)
	assert.Equal(t, 4, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("405")
	assert.Error(t, err)
}
