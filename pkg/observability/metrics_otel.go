package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry instruments for the admission pipeline
type OTelMetrics struct {
	admissions      metric.Int64Counter
	handlerDuration metric.Float64Histogram
	storeDuration   metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/platinummonkey/dernek"))
}

// NewOTelMetricsWithMeter creates the instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.admissions, err = meter.Int64Counter(
		"dernek.admission.decisions",
		metric.WithDescription("Admission pipeline decisions by stage and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admission counter: %w", err)
	}

	m.handlerDuration, err = meter.Float64Histogram(
		"dernek.handler.duration",
		metric.WithDescription("Handler execution time after admission"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler duration histogram: %w", err)
	}

	m.storeDuration, err = meter.Float64Histogram(
		"dernek.store.duration",
		metric.WithDescription("Record and document store operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	return m, nil
}

// RecordAdmission records the outcome of one pipeline stage
func (m *OTelMetrics) RecordAdmission(ctx context.Context, stage, outcome string) {
	if m == nil {
		return
	}
	m.admissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("admission.stage", stage),
		attribute.String("admission.outcome", outcome),
	))
}

// RecordHandler records how long a handler ran and the status it produced
func (m *OTelMetrics) RecordHandler(ctx context.Context, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	))
}

// RecordStoreOperation records a store call
func (m *OTelMetrics) RecordStoreOperation(ctx context.Context, store, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("store.operation", operation),
		attribute.Bool("error", err != nil),
	))
}
