package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/dernek/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOp()
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *Event) error { return nil }
func (noOpLogger) Close() error                      { return nil }

// NoOp returns a logger that drops every event
func NoOp() Logger {
	return noOpLogger{}
}

// NewEvent builds an event populated from the request and its context
func NewEvent(r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
	if r == nil {
		return event
	}

	event.Method = r.Method
	event.Path = r.URL.Path
	event.UserAgent = r.UserAgent()
	event.IPAddress = clientIP(r)
	event.RequestID = contextkeys.GetRequestID(r.Context())
	event.UserID = contextkeys.GetUserID(r.Context())
	return event
}

// clientIP prefers the first forwarded address over the socket peer
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Recorder keeps events in memory. It backs tests and the development profile.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Log implements Logger
func (r *Recorder) Log(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Close implements Logger
func (r *Recorder) Close() error {
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of the given type
func (r *Recorder) OfType(eventType EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
