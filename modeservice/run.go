// Package modeservice hosts the schedule-modes service composition root.
package modeservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/onoff-automations/schedule-modes/internal/api"
	"github.com/onoff-automations/schedule-modes/internal/config"
	"github.com/onoff-automations/schedule-modes/internal/engine"
	"github.com/onoff-automations/schedule-modes/internal/factory"
	"github.com/onoff-automations/schedule-modes/internal/health"
	"github.com/onoff-automations/schedule-modes/internal/logger"
	"github.com/onoff-automations/schedule-modes/internal/store"
)

// Run starts the schedule-modes HTTP service and blocks until shutdown or a
// fatal error.
func Run() error {
	log := logger.New("modes-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	eng, err := startEngine(ctx, cfg, st, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Engine failed to start")
		return err
	}

	svcHealth := startHealthCheckers(ctx, cfg, st, log)
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("Startup health check failed")
		return err
	}

	router := api.NewRouter(eng, svcHealth, cfg.Location())
	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		eng.Wait()
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// startEngine translates configuration into engine options and launches the
// reconciliation loop.
func startEngine(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) (*engine.Engine, error) {
	opts := engine.Options{
		EnabledModes:     cfg.EnabledModes,
		DefaultDurations: cfg.DefaultDurations,
		TickInterval:     cfg.TickInterval(),
		Retention:        cfg.Retention(),
		Location:         cfg.Location(),
		LinkEnabled:      cfg.LinkEnabled,
		LinkSource:       cfg.LinkSourceMode,
		LinkTarget:       cfg.LinkTargetMode,
	}
	if cfg.AutoResetTime != "" {
		hour, minute, err := config.ParseClock(cfg.AutoResetTime)
		if err != nil {
			return nil, err
		}
		opts.AutoResetEnabled = true
		opts.AutoResetHour = hour
		opts.AutoResetMinute = minute
	}

	eng := engine.New(st, opts, log)
	if err := eng.Start(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

func startHealthCheckers(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) *health.Service {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := health.NewStoreChecker(st, probeTimeout, log)
	go storeChecker.Start(ctx, interval)

	svc := health.NewService(log, storeChecker)
	go svc.Start(ctx, interval)
	return svc
}

// waitUntilHealthy blocks startup until dependencies report healthy, with a
// window of at least a minute so first probes can complete.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svc *health.Service) error {
	timeout := time.Duration(cfg.HealthIntervalSeconds*2) * time.Second
	if timeout < time.Minute {
		timeout = time.Minute
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svc.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
