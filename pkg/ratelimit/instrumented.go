package ratelimit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the rate limiter collectors
type Metrics struct {
	Decisions *prometheus.CounterVec
	Errors    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them when a registerer is given
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dernek_ratelimit_decisions_total",
				Help: "Rate limit decisions by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dernek_ratelimit_store_errors_total",
				Help: "Rate limit store failures by policy",
			},
			[]string{"policy"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Decisions, m.Errors)
	}
	return m
}

// InstrumentedStore records every decision made by the wrapped store
type InstrumentedStore struct {
	next    Store
	metrics *Metrics
}

// Instrument wraps a store with metrics
func Instrument(next Store, metrics *Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: metrics}
}

// Check implements Store
func (s *InstrumentedStore) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	res, err := s.next.Check(ctx, key, cfg)
	policy := cfg.Name
	if policy == "" {
		policy = "custom"
	}
	if err != nil {
		s.metrics.Errors.WithLabelValues(policy).Inc()
		return res, err
	}
	outcome := "admitted"
	if res.Limited {
		outcome = "limited"
	}
	s.metrics.Decisions.WithLabelValues(policy, outcome).Inc()
	return res, nil
}
