// Package middleware provides the gin middleware stack for the LivePen server.
//
//   - CORS: cross-origin access for editor front ends on other ports
//   - RateLimit: per-IP token buckets with idle eviction
//   - RequestLogger: one zap line per request
//   - Recovery: panics become {"error": ...} 500 responses
//
// Example Usage:
//
//	router.Use(middleware.Recovery(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
