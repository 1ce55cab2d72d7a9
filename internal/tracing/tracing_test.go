package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "famquest")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewProviderTagsService(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := NewProvider(sdktrace.WithSpanProcessor(rec), "famquest")
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "points.redeem_family")
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	found := false
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == attribute.Key("service.name") && kv.Value.AsString() == "famquest" {
			found = true
		}
	}
	if !found {
		t.Errorf("resource %v missing service.name", spans[0].Resource().Attributes())
	}
}
