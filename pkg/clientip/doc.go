// Package clientip resolves the caller's IP address behind reverse proxies.
//
// GetIP checks these sources in order and returns the first valid address:
//
//  1. CF-Connecting-IP, set by Cloudflare
//  2. X-Forwarded-For, the first valid entry of the comma-separated list
//  3. X-Real-IP, set by proxies such as Nginx
//  4. RemoteAddr, the TCP peer, with the port stripped
//
// Addresses come back in canonical form, so "::ffff:203.0.113.7" and
// "203.0.113.7" key the same client.
//
// # Usage
//
// The API process uses GetIP as the rate limiter key:
//
//	r.With(ratelimiter.Middleware(bucket, clientip.GetIP)).Get("/api/vehicle", h)
//
// Inside a handler:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		log.InfoContext(r.Context(), "vehicle lookup", "ip", clientip.GetIP(r))
//	}
//
// # Error Handling
//
// GetIP never fails. When no source holds a valid address it returns "",
// which ratelimiter.Middleware treats as "do not limit".
package clientip
