package vehicle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/cache"
	"github.com/wavespoole/carwash/pkg/queue/queuetest"
	"github.com/wavespoole/carwash/svc/vehicle"
)

type countingLooker struct {
	calls atomic.Int32
	err   error
}

func (c *countingLooker) Lookup(_ context.Context, vrm string) (vehicle.Vehicle, error) {
	c.calls.Add(1)
	if c.err != nil {
		return vehicle.Vehicle{}, c.err
	}
	return vehicle.Vehicle{VRM: vrm, Make: "Ford", Model: "Focus"}, nil
}

func TestCachedLooker(t *testing.T) {
	t.Parallel()

	t.Run("hits by normalized registration", func(t *testing.T) {
		t.Parallel()
		next := &countingLooker{}
		l := vehicle.NewCachedLooker(next, vehicle.CacheConfig{Size: 10, TTL: time.Hour})

		v, err := l.Lookup(context.Background(), "ab12 cde")
		require.NoError(t, err)
		assert.Equal(t, "AB12CDE", v.VRM)

		_, err = l.Lookup(context.Background(), " AB12CDE ")
		require.NoError(t, err)
		assert.Equal(t, int32(1), next.calls.Load())
	})

	t.Run("expires after ttl", func(t *testing.T) {
		t.Parallel()
		clock := queuetest.NewClock(queuetest.Epoch)
		next := &countingLooker{}
		l := vehicle.NewCachedLooker(next, vehicle.CacheConfig{Size: 10, TTL: time.Hour}, cache.WithClock(clock.Now))

		_, err := l.Lookup(context.Background(), "AB12CDE")
		require.NoError(t, err)
		clock.Advance(time.Hour)
		_, err = l.Lookup(context.Background(), "AB12CDE")
		require.NoError(t, err)
		assert.Equal(t, int32(2), next.calls.Load())
	})

	t.Run("does not cache failures", func(t *testing.T) {
		t.Parallel()
		next := &countingLooker{err: vehicle.ErrLookupFailed}
		l := vehicle.NewCachedLooker(next, vehicle.CacheConfig{Size: 10, TTL: time.Hour})

		for range 2 {
			_, err := l.Lookup(context.Background(), "AB12CDE")
			assert.ErrorIs(t, err, vehicle.ErrLookupFailed)
		}
		assert.Equal(t, int32(2), next.calls.Load())
	})

	t.Run("zero size disables caching", func(t *testing.T) {
		t.Parallel()
		next := &countingLooker{}
		l := vehicle.NewCachedLooker(next, vehicle.CacheConfig{})
		assert.Same(t, next, l)
	})
}
