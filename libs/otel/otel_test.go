package otelx

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "2.5")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := ConfigFromEnv("clinic-service")
	if !cfg.Enabled || cfg.OTLPEndpoint != "collector:4317" || cfg.ServiceName != "clinic-service" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", cfg.SampleRatio)
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	parent, state := TraceContextStrings(ctx)
	if parent == "" {
		t.Fatal("expected traceparent")
	}

	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), parent, state))
	if restored.TraceID() != traceID || restored.SpanID() != spanID {
		t.Fatalf("trace context lost: %v", restored)
	}

	if got := ContextWithTraceContext(ctx, "", ""); got != ctx {
		t.Fatal("empty trace context should return the input context")
	}
}
