// Package factory constructs the configured store driver.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onoff-automations/schedule-modes/internal/config"
	storepkg "github.com/onoff-automations/schedule-modes/internal/store"
	"github.com/onoff-automations/schedule-modes/internal/store/memstore"
	storepg "github.com/onoff-automations/schedule-modes/internal/store/postgres"
	"github.com/onoff-automations/schedule-modes/internal/store/remote"
	storesqlite "github.com/onoff-automations/schedule-modes/internal/store/sqlite"
)

// NewStore builds the store.Store selected by MODES_STORE_DRIVER. With
// MODES_CALENDAR_PROVIDER=remote, switch state stays on the local driver while
// calendar events go to the remote provider.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	var (
		base storepkg.Store
		err  error
	)
	switch cfg.StoreDriver {
	case "memory":
		base = memstore.New()
	case "sqlite":
		base, err = storesqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
	case "postgres":
		db, oerr := storepg.Open(cfg.PostgresDSN)
		if oerr != nil {
			return nil, oerr
		}
		base = storepg.NewWithDB(db)
	default:
		return nil, fmt.Errorf("unknown MODES_STORE_DRIVER: %s", cfg.StoreDriver)
	}

	if cfg.CalendarProvider == "remote" {
		log.Info().Str("url", cfg.RemoteCalendarURL).Msg("Using remote calendar provider")
		return &compositeStore{Store: base, events: remote.NewEvents(cfg.RemoteCalendarURL)}, nil
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("Store initialized")
	return base, nil
}

// compositeStore keeps mode/marker persistence local while delegating the
// calendar provider contract to a remote service.
type compositeStore struct {
	storepkg.Store
	events storepkg.Events
}

func (c *compositeStore) Events() storepkg.Events { return c.events }
