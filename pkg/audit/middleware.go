package audit

import (
	"net/http"
	"strings"
)

// Middleware puts the audit logger into every request context and records
// mutations, error responses and requests to sensitive endpoints.
type Middleware struct {
	logger         Logger
	logAllRequests bool
}

// NewMiddleware creates a new audit middleware
func NewMiddleware(logger Logger, logAllRequests bool) *Middleware {
	if logger == nil {
		logger = NoOp()
	}
	return &Middleware{logger: logger, logAllRequests: logAllRequests}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Handler wraps an HTTP handler with audit logging
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(WithLogger(r.Context(), m.logger))
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		if !m.logAllRequests && !shouldLogRequest(r, wrapped.statusCode) {
			return
		}

		status := EventStatusSuccess
		switch {
		case wrapped.statusCode == http.StatusUnauthorized || wrapped.statusCode == http.StatusForbidden:
			status = EventStatusDenied
		case wrapped.statusCode >= 400:
			status = EventStatusFailure
		}
		event := NewEvent(r, EventTypeHTTPRequest, status)
		event.StatusCode = wrapped.statusCode
		// Audit failures never fail the request.
		_ = m.logger.Log(r.Context(), event)
	})
}

// shouldLogRequest selects mutations, errors and sensitive endpoints
func shouldLogRequest(r *http.Request, statusCode int) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
		return true
	}
	if statusCode >= 400 {
		return true
	}
	return isSensitiveEndpoint(r.URL.Path)
}

func isSensitiveEndpoint(path string) bool {
	for _, prefix := range []string{"/api/auth", "/api/users", "/api/documents"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
