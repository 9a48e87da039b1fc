package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// FunnelMetrics counts funnel events by type and step.
type FunnelMetrics struct {
	events metric.Int64Counter
}

// NewFunnelMetrics registers the funnel counter on provider.
func NewFunnelMetrics(provider metric.MeterProvider) (*FunnelMetrics, error) {
	c, err := provider.Meter("onboarding.registration").Int64Counter(
		"registration.funnel.events",
		metric.WithDescription("Registration funnel events by type and step"),
	)
	if err != nil {
		return nil, err
	}
	return &FunnelMetrics{events: c}, nil
}

// Emit implements telemetry.EventEmitter.
func (m *FunnelMetrics) Emit(ctx context.Context, event *telemetry.Event) error {
	if m == nil || event == nil {
		return nil
	}
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", event.Type),
		attribute.String("step", event.Step),
	))
	return nil
}
