package audit

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as JSON lines through logrus.
// Denied and failed events are logged at warn level, the rest at info.
type LogrusLogger struct {
	log    *logrus.Logger
	closer io.Closer
}

// NewLogrusLogger creates an audit logger writing to out (stderr when nil)
func NewLogrusLogger(out io.Writer) *LogrusLogger {
	if out == nil {
		out = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})

	l := &LogrusLogger{log: log}
	if c, ok := out.(io.Closer); ok && out != os.Stderr && out != os.Stdout {
		l.closer = c
	}
	return l
}

// Log implements Logger
func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	addString(fields, "user_id", event.UserID)
	addString(fields, "email", event.Email)
	addString(fields, "role", event.Role)
	addString(fields, "resource_type", string(event.ResourceType))
	addString(fields, "resource_id", event.ResourceID)
	addString(fields, "ip_address", event.IPAddress)
	addString(fields, "user_agent", event.UserAgent)
	addString(fields, "request_id", event.RequestID)
	addString(fields, "method", event.Method)
	addString(fields, "path", event.Path)
	addString(fields, "error_code", event.ErrorCode)
	addString(fields, "error_message", event.ErrorMessage)
	if event.StatusCode != 0 {
		fields["status_code"] = event.StatusCode
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.log.WithFields(fields).WithTime(event.Timestamp)
	message := event.Message
	if message == "" {
		message = string(event.EventType)
	}

	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
	return nil
}

// Close implements Logger
func (l *LogrusLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func addString(fields logrus.Fields, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
