// Package refresher runs one fetch → store → publish cycle.
package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/models"
)

// Fetcher supplies the full tracked rate set from the upstream.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]models.Rate, error)
}

// Writer persists the rate blob and signals subscribers.
type Writer interface {
	SetRates(ctx context.Context, rates []models.Rate) error
	PublishRatesUpdated(ctx context.Context) error
}

// Refresher mirrors the upstream quote set into the shared store. It
// is stateless between invocations; concurrent runs are safe because
// the store write is last-writer-wins.
type Refresher struct {
	fetcher Fetcher
	writer  Writer
}

// New creates a refresher.
func New(fetcher Fetcher, writer Writer) *Refresher {
	return &Refresher{fetcher: fetcher, writer: writer}
}

// Refresh fetches all tracked rates, writes the blob and publishes one
// notification, in that order. A fetch failure leaves the store
// untouched: serving stale rates beats serving none. The count of
// stored rates is returned on success.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	start := time.Now()

	rates, err := r.fetcher.FetchAll(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("refresh aborted: upstream fetch failed")
		return 0, err
	}

	if err := r.writer.SetRates(ctx, rates); err != nil {
		logger.Log.Error().Err(err).Msg("refresh failed: store write failed")
		return 0, fmt.Errorf("unexpected error: %w", err)
	}
	// Publish strictly after the write commits. A publish failure
	// leaves the blob updated; subscribers catch up on the next cycle.
	if err := r.writer.PublishRatesUpdated(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("refresh failed: notification publish failed")
		return 0, fmt.Errorf("unexpected error: %w", err)
	}

	logger.Log.Info().
		Int("rates", len(rates)).
		Dur("elapsed", time.Since(start)).
		Msg("refresh cycle complete")
	return len(rates), nil
}
