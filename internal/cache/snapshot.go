// Package cache holds the in-process rate snapshot and keeps it in
// sync with the shared store.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/models"
)

// Reader reads the canonical rate blob from the shared store.
type Reader interface {
	GetRates(ctx context.Context) ([]models.Rate, error)
}

// Cache is the in-process mirror of the rate table. The snapshot is
// replaced wholesale by an atomic pointer swap; readers never block
// and never observe a partial table. Nil until the first successful
// sync.
type Cache struct {
	store    Reader
	snapshot atomic.Pointer[[]models.Rate]
}

// New creates an empty cache backed by the given store reader.
func New(store Reader) *Cache {
	return &Cache{store: store}
}

// GetRates returns the current snapshot. ok is false before the first
// successful sync. Callers must not mutate the returned slice.
func (c *Cache) GetRates() ([]models.Rate, bool) {
	p := c.snapshot.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// UpdateRates atomically replaces the snapshot. Only the sync job
// calls this; it is exported for the refresh path in tests.
func (c *Cache) UpdateRates(rates []models.Rate) {
	c.snapshot.Store(&rates)
}

// Run is the sync job: one immediate sync, then one sync per trigger,
// strictly serial. It returns when ctx is cancelled or the trigger
// stream closes. Sync failures are logged and swallowed; the job never
// takes the API process down.
func (c *Cache) Run(ctx context.Context, triggers <-chan struct{}) {
	c.sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
			c.sync(ctx)
		}
	}
}

// sync reads the store and swaps the snapshot. A cold or unparseable
// store value keeps the existing snapshot: stale beats empty.
func (c *Cache) sync(ctx context.Context) {
	start := time.Now()

	rates, err := c.store.GetRates(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("snapshot sync failed")
		return
	}
	if rates == nil {
		logger.Log.Warn().Msg("store has no rates; keeping current snapshot")
		return
	}

	c.UpdateRates(rates)
	logger.Log.Info().
		Int("rates", len(rates)).
		Dur("elapsed", time.Since(start)).
		Msg("snapshot updated")
}
