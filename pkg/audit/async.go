package audit

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrBufferFull is returned when an event is dropped because the queue is full
	ErrBufferFull = errors.New("audit buffer full, event dropped")
	// ErrClosed is returned for events logged after Close
	ErrClosed = errors.New("audit logger closed")
)

// AsyncLogger queues events and writes them to the wrapped Logger from a
// single background goroutine. Log never blocks: when the queue is full the
// event is dropped and counted.
type AsyncLogger struct {
	next    Logger
	events  chan *Event
	done    chan struct{}
	onError func(error)

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	once    sync.Once
}

// NewAsyncLogger starts the writer goroutine. onError, when set, receives write failures and recovered panics.
func NewAsyncLogger(next Logger, buffer int, onError func(error)) *AsyncLogger {
	if buffer <= 0 {
		buffer = 1024
	}
	a := &AsyncLogger{
		next:    next,
		events:  make(chan *Event, buffer),
		done:    make(chan struct{}),
		onError: onError,
	}
	go a.run()
	return a
}

// Log implements Logger. The event is copied before it is queued.
func (a *AsyncLogger) Log(_ context.Context, event *Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	copied := *event
	select {
	case a.events <- &copied:
		return nil
	default:
		a.dropped.Add(1)
		return ErrBufferFull
	}
}

// Dropped returns how many events were discarded because the queue was full
func (a *AsyncLogger) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events, drains the queue and closes the wrapped Logger
func (a *AsyncLogger) Close() error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.events)
		a.mu.Unlock()

		<-a.done
		err = a.next.Close()
	})
	return err
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for event := range a.events {
		a.write(event)
	}
}

func (a *AsyncLogger) write(event *Event) {
	defer func() {
		if r := recover(); r != nil {
			a.report(fmt.Errorf("panic writing audit event: %v\n%s", r, debug.Stack()))
		}
	}()
	if err := a.next.Log(context.Background(), event); err != nil {
		a.report(err)
	}
}

func (a *AsyncLogger) report(err error) {
	if a.onError != nil {
		a.onError(err)
	}
}
