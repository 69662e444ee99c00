// Package middleware provides the request admission pipeline: rate limiting,
// authentication, authorization and failure normalization around API handlers.
//
// # Overview
//
// A route is a Pipeline of Stages evaluated in order with early exit, followed
// by the handler inside a failure boundary. Every way out of a pipeline that
// is not the handler's own response goes through httputil.ToErrorResponse.
//
//	request → ratelimit → authenticate → authorize → handler
//
// Rate limiting is outermost, so a request is counted exactly once no matter
// how authentication turns out.
//
// # Route Declaration
//
// Middleware carries the shared collaborators:
//
//	mw := middleware.New(store, validator, logger).
//		WithAudit(auditLogger).
//		WithMetrics(metrics, otelMetrics)
//
//	router.Handle("/api/auth/login", mw.WithAPIMiddleware(login, middleware.APIOptions{
//		RateLimit: mw.Presets().Strict,
//	}))
//
//	router.Handle("/api/members/{id}", mw.WithProtectedAPIParams(getMember, middleware.ProtectedOptions{
//		Permissions: []auth.Permission{auth.PermMembersView},
//	}))
//
// WithAuth and WithAuthParams run only the two auth stages and are meant for
// handlers composed outside a Middleware.
//
// # Rate Limit Headers
//
// Every counted request carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (ISO 8601, UTC, milliseconds). Rejections add Retry-After
// in whole seconds and a 429 RATE_LIMIT_EXCEEDED envelope whose details hold
// the reset time. When the store fails the limiter admits the request, or
// answers 503 RATE_LIMIT_UNAVAILABLE when configured to fail closed.
//
// # Related Packages
//
//   - pkg/ratelimit: stores and presets
//   - pkg/auth: token validation and the role permission table
//   - pkg/httputil: response envelopes
//   - pkg/audit: denial and rate limit events
package middleware
