// Package ratelimiter implements a token bucket limiter and HTTP middleware.
//
// A Bucket holds Capacity tokens per key and adds RefillRate tokens every
// RefillInterval, never above Capacity. Each request takes one token. Store
// keeps the per-key state; MemoryStore is the in-process implementation and
// drops idle buckets on its own.
//
// # Usage
//
// The API process puts it in front of the vehicle lookup, which calls a paid
// upstream provider, keyed by client IP:
//
//	var cfg ratelimiter.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), cfg)
//	if err != nil {
//		return err
//	}
//	r.With(ratelimiter.Middleware(b, clientip.GetIP)).Get("/api/vehicle", h)
//
// Checking a key directly:
//
//	res, err := b.Allow(ctx, key)
//	if err != nil {
//		return err
//	}
//	if !res.Allowed() {
//		// retry after res.ResetAt
//	}
//
// # Configuration
//
//	RATE_LIMIT_CAPACITY=30         burst size
//	RATE_LIMIT_REFILL_RATE=10      tokens added per interval
//	RATE_LIMIT_REFILL_INTERVAL=1m  refill period
//
// # Error Handling
//
// NewBucket returns ErrInvalidConfig for non-positive settings. Middleware
// answers 429 with Retry-After and X-RateLimit-* headers once a key is out of
// tokens, and lets requests through when the store fails or the key is empty.
package ratelimiter
