package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/queue/queuetest"
	"github.com/wavespoole/carwash/pkg/ratelimiter"
)

func TestNewBucket(t *testing.T) {
	t.Parallel()

	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
}

func TestBucket(t *testing.T) {
	t.Parallel()

	cfg := ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Minute}

	t.Run("drains and refills", func(t *testing.T) {
		t.Parallel()
		clock := queuetest.NewClock(queuetest.Epoch)
		b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now)), cfg)
		require.NoError(t, err)
		ctx := context.Background()

		for want := 2; want >= 0; want-- {
			res, err := b.Allow(ctx, "198.51.100.1")
			require.NoError(t, err)
			assert.True(t, res.Allowed())
			assert.Equal(t, want, res.Remaining)
		}

		res, err := b.Allow(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.False(t, res.Allowed())

		other, err := b.Allow(ctx, "198.51.100.2")
		require.NoError(t, err)
		assert.True(t, other.Allowed())

		clock.Advance(time.Minute)
		res, err = b.Allow(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 0, res.Remaining)
	})

	t.Run("denied request consumes nothing", func(t *testing.T) {
		t.Parallel()
		clock := queuetest.NewClock(queuetest.Epoch)
		b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now)), cfg)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = b.AllowN(ctx, "k", 3)
		require.NoError(t, err)
		for range 5 {
			res, err := b.Allow(ctx, "k")
			require.NoError(t, err)
			assert.False(t, res.Allowed())
		}
		clock.Advance(time.Minute)
		res, err := b.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
	})

	t.Run("reset and invalid count", func(t *testing.T) {
		t.Parallel()
		b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), cfg)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = b.AllowN(ctx, "k", 3)
		require.NoError(t, err)
		require.NoError(t, b.Reset(ctx, "k"))
		res, err := b.Allow(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)

		_, err = b.AllowN(ctx, "k", 0)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	key := func(r *http.Request) string { return r.Header.Get("X-Client") }
	h := ratelimiter.Middleware(b, key)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/vehicle?vrm=AB12CDE", nil)
		if client != "" {
			req.Header.Set("X-Client", client)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := call("a")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("b").Code)
	assert.Equal(t, http.StatusOK, call("").Code)
	assert.Equal(t, http.StatusOK, call("").Code)
}
