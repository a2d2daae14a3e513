// Package cache provides a size-bounded LRU cache whose entries expire after a TTL.
//
// LRU is safe for concurrent use. Get moves a live entry to the front, Put evicts
// the least recently used entry once capacity is exceeded, and an entry read at or
// after its expiry is dropped and reported as a miss. A zero TTL keeps entries
// until they are evicted.
//
// # Usage
//
//	lookups := cache.NewLRU[string, vehicle.Result](1000, 24*time.Hour)
//
//	if res, ok := lookups.Get(vrm); ok {
//		return res, nil
//	}
//	res, err := provider.Lookup(ctx, vrm)
//	if err != nil {
//		return vehicle.Result{}, err
//	}
//	lookups.Put(vrm, res)
//
// Tests control expiry with WithClock:
//
//	c := cache.NewLRU[string, int](2, time.Minute, cache.WithClock(clock.Now))
//
// NewLRU panics when capacity is not positive.
package cache
