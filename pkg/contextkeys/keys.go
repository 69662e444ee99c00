// Package contextkeys provides centralized context key definitions
//
// All request-scoped values shared between packages are keyed here so the
// producer and the consumers agree on the key and the stored type.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithIdentity(ctx, identity)
//	identity, _ := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
package contextkeys

import (
	"context"
	"time"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: middleware.WithAuth (pkg/middleware/auth.go)
	// Required by: protected handlers, audit events
	IdentityKey Key = "identity"

	// ParamsKey contains map[string]string route parameters
	// Set by: middleware.WithProtectedAPIParams
	ParamsKey Key = "route_params"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail, error responses
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID string
	// Set by: middleware.WithAuth after the identity is resolved
	// Used by: logger
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger
	// Set by: audit.Middleware
	AuditLoggerKey Key = "audit_logger"

	// RequestStartTimeKey contains time.Time
	// Set by: httputil.LoggingMiddleware
	RequestStartTimeKey Key = "request_start_time"
)

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithParams adds route parameters to the context
func WithParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, ParamsKey, params)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetParams retrieves route parameters from context
func GetParams(ctx context.Context) map[string]string {
	if params, ok := ctx.Value(ParamsKey).(map[string]string); ok {
		return params
	}
	return nil
}

// GetRequestStartTime retrieves the request start time, or the zero time
func GetRequestStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(RequestStartTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}
