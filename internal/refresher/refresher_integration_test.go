package refresher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/petitolabs/forex-proxy/internal/cache"
	"github.com/petitolabs/forex-proxy/internal/oneframe"
	"github.com/petitolabs/forex-proxy/internal/store"
)

const upstreamBody = `[
	{"from":"USD","to":"EUR","bid":"0.84","ask":"0.86","price":"0.85","time_stamp":"2026-02-10T00:00:00Z"},
	{"from":"USD","to":"JPY","bid":"110.4","ask":"110.6","price":"110.5","time_stamp":"2026-02-10T00:00:01Z"}
]`

func TestRefresh_AgainstStore(t *testing.T) {
	t.Parallel()

	t.Run("cycle reaches a subscribed snapshot", func(t *testing.T) {
		t.Parallel()

		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(upstreamBody))
		}))
		defer upstream.Close()

		mr := miniredis.RunT(t)
		st, err := store.Open("redis://" + mr.Addr())
		require.NoError(t, err)
		defer func() { _ = st.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub := st.SubscribeRatesUpdated(ctx)
		defer func() { _ = sub.Close() }()

		snapshot := cache.New(st)
		done := make(chan struct{})
		go func() { defer close(done); snapshot.Run(ctx, sub.Events()) }()

		// The initial sync sees a cold store and keeps the snapshot empty.
		time.Sleep(50 * time.Millisecond)
		_, ok := snapshot.GetRates()
		require.False(t, ok)

		client := oneframe.NewClient(upstream.URL, "secret", time.Second, 0)
		count, err := New(client, st).Refresh(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, count)

		deadline := time.Now().Add(2 * time.Second)
		for {
			if rates, ok := snapshot.GetRates(); ok {
				require.Len(t, rates, 2)
				break
			}
			require.True(t, time.Now().Before(deadline), "snapshot never synced")
			time.Sleep(10 * time.Millisecond)
		}

		cancel()
		<-done
	})

	t.Run("failed fetch leaves the blob byte-identical and silent", func(t *testing.T) {
		t.Parallel()

		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer upstream.Close()

		mr := miniredis.RunT(t)
		st, err := store.Open("redis://" + mr.Addr())
		require.NoError(t, err)
		defer func() { _ = st.Close() }()

		ctx := context.Background()

		before := `[{"pair":{"from":"USD","to":"EUR"},"price":"0.85","timestamp":"2026-02-10T00:00:00Z"}]`
		mr.Set("rates", before)

		sub := st.SubscribeRatesUpdated(ctx)
		defer func() { _ = sub.Close() }()
		time.Sleep(50 * time.Millisecond)

		client := oneframe.NewClient(upstream.URL, "secret", time.Second, 1)
		_, err = New(client, st).Refresh(ctx)
		require.Error(t, err)

		after, getErr := mr.Get("rates")
		require.NoError(t, getErr)
		require.Equal(t, before, after)

		select {
		case <-sub.Events():
			t.Fatal("no notification expected after a failed refresh")
		case <-time.After(200 * time.Millisecond):
		}
	})
}
