// Package store adapts the shared valkey store: the canonical rate
// blob under a fixed key plus the update notification channel.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/models"
)

const (
	// ratesKey is the single key holding the JSON rate blob.
	ratesKey = "rates"
	// ratesUpdatedChannel carries fire-and-forget refresh signals.
	ratesUpdatedChannel = "rates_updated"
)

// Store wraps a valkey client. Command traffic shares the client's
// connection pool; each subscription takes its own dedicated
// connection, so a blocking subscribe never starves GET/SET.
type Store struct {
	client *redis.Client
}

// Open creates a client for the store at the given URI (redis://
// scheme). No connection is made until the first command.
func Open(uri string) (*Store, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid store URI: %w", err)
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// Close releases the client and all its connections.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetRates reads the rate blob. A missing key or an unparseable value
// yields (nil, nil): callers treat both as cold state. Only transport
// errors are returned.
func (s *Store) GetRates(ctx context.Context) ([]models.Rate, error) {
	data, err := s.client.Get(ctx, ratesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rates: %w", err)
	}

	var rates []models.Rate
	if err := json.Unmarshal(data, &rates); err != nil {
		logger.Log.Warn().Err(err).Msg("discarding unparseable rate blob")
		return nil, nil
	}
	return rates, nil
}

// SetRates serializes the rates as one JSON array and overwrites the
// blob. The single-key SET is atomic from readers' perspective. No TTL.
func (s *Store) SetRates(ctx context.Context, rates []models.Rate) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("failed to encode rates: %w", err)
	}
	if err := s.client.Set(ctx, ratesKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write rates: %w", err)
	}
	return nil
}

// PublishRatesUpdated emits one notification. The payload is ignored
// by subscribers; a message with no live subscribers is lost, which is
// fine — the next cycle publishes again.
func (s *Store) PublishRatesUpdated(ctx context.Context) error {
	if err := s.client.Publish(ctx, ratesUpdatedChannel, "").Err(); err != nil {
		return fmt.Errorf("failed to publish rates notification: %w", err)
	}
	return nil
}

// Subscription is a single-use stream of update signals.
type Subscription struct {
	pubsub *redis.PubSub
	events chan struct{}
}

// SubscribeRatesUpdated opens a subscription on a dedicated store
// connection and starts pumping received messages into Events. The
// underlying client resubscribes automatically after a reconnect.
func (s *Store) SubscribeRatesUpdated(ctx context.Context) *Subscription {
	pubsub := s.client.Subscribe(ctx, ratesUpdatedChannel)

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan struct{}, 1),
	}
	go sub.pump()
	return sub
}

// pump converts each received message into one unit event, in order.
func (sub *Subscription) pump() {
	defer close(sub.events)
	for range sub.pubsub.Channel() {
		sub.events <- struct{}{}
	}
}

// Events yields one value per received notification. The channel is
// closed when the subscription closes.
func (sub *Subscription) Events() <-chan struct{} {
	return sub.events
}

// Close releases the dedicated subscriber connection.
func (sub *Subscription) Close() error {
	return sub.pubsub.Close()
}
