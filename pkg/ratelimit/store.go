package ratelimit

import (
	"context"
	"math"
	"time"
)

// Store accounts requests per key.
//
// Check records one request for key under cfg and reports whether it is over
// the limit. Implementations must make the increment and the comparison atomic
// for a given key.
type Store interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
}

// Result is the outcome of a single Check
type Result struct {
	Limited   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RetryAfter returns the whole seconds until the window resets, never negative
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetTime.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(time.Second)))
}

// ResetHeader formats the reset time the way every rate limited response reports it
func (r Result) ResetHeader() string {
	return r.ResetTime.UTC().Format(ResetTimeFormat)
}

// ResetTimeFormat is ISO 8601 with millisecond precision
const ResetTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Record is the per-key accounting state of a window
type Record struct {
	Key         string
	Count       int
	WindowStart time.Time
	ResetTime   time.Time
}

func (r *Record) expired(now time.Time) bool {
	return !now.Before(r.ResetTime)
}

func resultFor(count int, cfg Config, reset time.Time) Result {
	if count > cfg.Limit {
		return Result{Limited: true, Limit: cfg.Limit, Remaining: 0, ResetTime: reset}
	}
	return Result{Limited: false, Limit: cfg.Limit, Remaining: cfg.Limit - count, ResetTime: reset}
}
