// Package requestid tags each HTTP request with a correlation ID.
//
// Middleware reuses a well-formed X-Request-ID header or generates a new UUID,
// stores it in the request context and echoes it in the response. Pass
// LoggerExtractor to logger.WithContextExtractors so every record logged with
// the request context carries request_id.
package requestid
