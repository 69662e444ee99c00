package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is anything that can report its reachability, such as *sqlx.DB or a redis client adapter
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

type dependency struct {
	name     string
	pinger   Pinger
	critical bool
}

// HealthChecker probes registered dependencies.
// A failing critical dependency makes the service unhealthy; a failing optional one degrades it.
type HealthChecker struct {
	version string
	deps    []dependency
}

// NewHealthChecker creates a checker reporting version
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version}
}

// AddCritical registers a dependency the service cannot run without
func (h *HealthChecker) AddCritical(name string, p Pinger) *HealthChecker {
	h.deps = append(h.deps, dependency{name: name, pinger: p, critical: true})
	return h
}

// AddOptional registers a dependency whose failure only degrades the service
func (h *HealthChecker) AddOptional(name string, p Pinger) *HealthChecker {
	h.deps = append(h.deps, dependency{name: name, pinger: p})
	return h
}

// Names returns the registered dependency names in sorted order
func (h *HealthChecker) Names() []string {
	names := make([]string, 0, len(h.deps))
	for _, d := range h.deps {
		names = append(names, d.name)
	}
	sort.Strings(names)
	return names
}

// Check pings every dependency concurrently
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.deps)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, d := range h.deps {
		wg.Add(1)
		go func(d dependency) {
			defer wg.Done()
			ds := ping(ctx, d.pinger)

			mu.Lock()
			defer mu.Unlock()
			status.Dependencies[d.name] = ds
			if ds.Status != StatusUnhealthy {
				return
			}
			if d.critical {
				status.Status = StatusUnhealthy
			} else if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		}(d)
	}
	wg.Wait()

	return status
}

func ping(ctx context.Context, p Pinger) DependencyStatus {
	start := time.Now()
	err := p.PingContext(ctx)
	ds := DependencyStatus{
		Status:    StatusHealthy,
		LatencyMS: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = err.Error()
	}
	return ds
}
