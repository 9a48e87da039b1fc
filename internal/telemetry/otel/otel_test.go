package otel

import (
	"context"
	"strings"
	"testing"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(ctx, Options{Endpoint: endpoint, ServiceName: "onboarding", Environment: "test"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatal("providers should not be nil")
		}
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"http://[invalid", "http://"} {
		if _, err := NewProviders(context.Background(), Options{Endpoint: endpoint, ServiceName: "onboarding"}); err == nil {
			t.Errorf("NewProviders(%q) should fail", endpoint)
		}
	}
}

func TestCollectorTarget(t *testing.T) {
	tests := []struct {
		endpoint string
		force    bool
		target   string
		insecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317/v1/traces", false, "collector:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
	}
	for _, tt := range tests {
		target, insecure, err := collectorTarget(tt.endpoint, tt.force)
		if err != nil {
			t.Fatalf("collectorTarget(%q): %v", tt.endpoint, err)
		}
		if target != tt.target || insecure != tt.insecure {
			t.Errorf("collectorTarget(%q, %v) = %q, %v; want %q, %v", tt.endpoint, tt.force, target, insecure, tt.target, tt.insecure)
		}
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	// Exporters connect lazily, so construction succeeds without a collector.
	p, err := NewProviders(ctx, Options{Endpoint: "localhost:4317", ServiceName: "onboarding", Insecure: true, SampleRatio: 0.5})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	p.SetGlobal()
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestSampler(t *testing.T) {
	for ratio, want := range map[float64]string{0: "AlwaysOnSampler", 1: "AlwaysOnSampler", 0.25: "TraceIDRatioBased{0.25}"} {
		if got := sampler(ratio).Description(); !strings.Contains(got, want) {
			t.Errorf("sampler(%v) = %q, want it to contain %q", ratio, got, want)
		}
	}
}

func TestEventEmitter(t *testing.T) {
	if err := NewEventEmitter(nil).Emit(context.Background(), &telemetry.Event{Type: "x"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
	e := NewEventEmitter(sdklog.NewLoggerProvider())
	if err := e.Emit(context.Background(), nil); err != nil {
		t.Errorf("nil event: %v", err)
	}
	ev := telemetry.NewEvent(telemetry.EventOTPSent, "h", "VERIFY", time.Now()).With("method", "SMS")
	if err := e.Emit(context.Background(), ev); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestFunnelMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewFunnelMetrics(mp)
	if err != nil {
		t.Fatalf("NewFunnelMetrics: %v", err)
	}
	ctx := context.Background()
	_ = m.Emit(ctx, telemetry.NewEvent(telemetry.EventOTPSent, "h1", "VERIFY", time.Now()))
	_ = m.Emit(ctx, telemetry.NewEvent(telemetry.EventOTPSent, "h2", "VERIFY", time.Now()))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "registration.funnel.events" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("data type = %T", md.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Errorf("counted %d events, want 2", total)
	}
}
