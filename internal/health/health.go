// Package health tracks liveness of the service's dependencies.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/onoff-automations/schedule-modes/internal/store"
)

// Checker is implemented by component-level health probes.
type Checker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// StoreChecker probes the backing store (switch state and calendar provider)
// on a fixed interval and caches the result.
type StoreChecker struct {
	store        store.Store
	probeTimeout time.Duration
	healthy      atomic.Bool
	log          zerolog.Logger
}

func NewStoreChecker(s store.Store, probeTimeout time.Duration, log zerolog.Logger) *StoreChecker {
	return &StoreChecker{store: s, probeTimeout: probeTimeout, log: log}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) IsHealthy() bool { return c.healthy.Load() }

// Start probes immediately, then on every interval until ctx is cancelled.
func (c *StoreChecker) Start(ctx context.Context, interval time.Duration) {
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
		err := c.store.HealthPing(pctx)
		was := c.healthy.Swap(err == nil)
		if err != nil && was {
			c.log.Error().Err(err).Msg("Store health probe failed")
		} else if err == nil && !was {
			c.log.Info().Msg("Store healthy")
		}
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// Service folds component checkers into one service-level flag.
type Service struct {
	checkers []Checker
	log      zerolog.Logger
	up       atomic.Bool
}

func NewService(log zerolog.Logger, checkers ...Checker) *Service {
	return &Service{checkers: checkers, log: log}
}

func (s *Service) IsHealthy() bool { return s.up.Load() }

// Components reports each checker's cached state by name.
func (s *Service) Components() map[string]bool {
	out := make(map[string]bool, len(s.checkers))
	for _, c := range s.checkers {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Start re-evaluates the aggregate on every interval, logging transitions.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	eval := func() {
		all := true
		for _, c := range s.checkers {
			if !c.IsHealthy() {
				all = false
			}
		}
		if was := s.up.Swap(all); was != all {
			if all {
				s.log.Info().Msg("Service health: UP")
			} else {
				s.log.Error().Msg("Service health: DOWN")
			}
		}
	}

	eval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
