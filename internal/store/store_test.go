package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/petitolabs/forex-proxy/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := Open("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func sampleRates() []models.Rate {
	return []models.Rate{
		{
			Pair:      models.Pair{From: models.USD, To: models.EUR},
			Price:     decimal.RequireFromString("0.857418273645912384712"),
			Timestamp: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			Pair:      models.Pair{From: models.USD, To: models.JPY},
			Price:     decimal.RequireFromString("110.5"),
			Timestamp: time.Date(2026, 2, 10, 0, 0, 1, 0, time.UTC),
		},
	}
}

func TestStore_Rates(t *testing.T) {
	t.Parallel()

	t.Run("round-trips the blob with full precision", func(t *testing.T) {
		t.Parallel()
		st, _ := newTestStore(t)
		ctx := context.Background()

		want := sampleRates()
		require.NoError(t, st.SetRates(ctx, want))

		got, err := st.GetRates(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for i := range want {
			require.Equal(t, want[i].Pair, got[i].Pair)
			require.True(t, want[i].Price.Equal(got[i].Price), "want %s got %s", want[i].Price, got[i].Price)
			require.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
		}
	})

	t.Run("returns nil for a missing key", func(t *testing.T) {
		t.Parallel()
		st, _ := newTestStore(t)

		got, err := st.GetRates(context.Background())
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("returns nil for an unparseable blob", func(t *testing.T) {
		t.Parallel()
		st, mr := newTestStore(t)
		mr.Set("rates", "{not json")

		got, err := st.GetRates(context.Background())
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("returns nil when the blob holds unknown currencies", func(t *testing.T) {
		t.Parallel()
		st, mr := newTestStore(t)
		mr.Set("rates", `[{"pair":{"from":"QQQ","to":"EUR"},"price":"1","timestamp":"2026-02-10T00:00:00Z"}]`)

		got, err := st.GetRates(context.Background())
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("overwrites the previous blob", func(t *testing.T) {
		t.Parallel()
		st, _ := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, st.SetRates(ctx, sampleRates()))
		require.NoError(t, st.SetRates(ctx, sampleRates()[:1]))

		got, err := st.GetRates(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
	})
}

func TestStore_PubSub(t *testing.T) {
	t.Parallel()

	t.Run("delivers published notifications", func(t *testing.T) {
		t.Parallel()
		st, _ := newTestStore(t)
		ctx := context.Background()

		sub := st.SubscribeRatesUpdated(ctx)
		defer func() { _ = sub.Close() }()

		// Give the subscriber a moment to register.
		time.Sleep(50 * time.Millisecond)

		require.NoError(t, st.PublishRatesUpdated(ctx))

		select {
		case _, ok := <-sub.Events():
			require.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notification")
		}
	})

	t.Run("publish without subscribers is not an error", func(t *testing.T) {
		t.Parallel()
		st, _ := newTestStore(t)

		require.NoError(t, st.PublishRatesUpdated(context.Background()))
	})

	t.Run("close ends the event stream", func(t *testing.T) {
		t.Parallel()
		st, _ := newTestStore(t)

		sub := st.SubscribeRatesUpdated(context.Background())
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, sub.Close())

		select {
		case _, ok := <-sub.Events():
			require.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream close")
		}
	})
}
