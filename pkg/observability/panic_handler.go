package observability

import (
	"runtime/debug"
)

// LogPanic logs a recovered panic value with its stack trace.
// The stack goes to the log only, never to a client.
func LogPanic(logger *Logger, value interface{}, where string) {
	logger.WithField("panic", value).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}

// RecoverPanic recovers from a panic and logs it. Call it in a defer statement:
//
//	defer observability.RecoverPanic(logger, "ratelimit cleanup")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		LogPanic(logger, r, where)
	}
}
