package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/onoff-automations/schedule-modes/internal/store/memstore"
)

type staticChecker struct {
	name    string
	healthy atomic.Bool
}

func (c *staticChecker) Name() string                         { return c.name }
func (c *staticChecker) IsHealthy() bool                      { return c.healthy.Load() }
func (c *staticChecker) Start(context.Context, time.Duration) {}

func TestStoreCheckerProbesOnStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewStoreChecker(memstore.New(), time.Second, zerolog.Nop())
	assert.False(t, c.IsHealthy())

	done := make(chan struct{})
	go func() {
		c.Start(ctx, time.Hour)
		close(done)
	}()
	assert.Eventually(t, c.IsHealthy, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestServiceAggregatesComponents(t *testing.T) {
	store := &staticChecker{name: "store"}
	store.healthy.Store(true)
	engine := &staticChecker{name: "engine"}
	svc := NewService(zerolog.Nop(), store, engine)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Never(t, svc.IsHealthy, 50*time.Millisecond, 10*time.Millisecond)

	engine.healthy.Store(true)
	assert.Eventually(t, svc.IsHealthy, time.Second, 10*time.Millisecond)

	comps := svc.Components()
	assert.True(t, comps["store"])
	assert.True(t, comps["engine"])

	cancel()
	<-done
}
