package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	observerport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/observer"
)

// Spans attaches wizard events to the span carried by ctx. Remote call failures also
// record an error and mark the span failed. Without a recording span it does nothing.
type Spans struct{}

var _ observerport.Observer = Spans{}

func (Spans) Observe(ctx context.Context, ev observerport.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("onboarding.event", string(ev.Kind))}
	if ev.Step != "" {
		attrs = append(attrs, attribute.String("onboarding.step", string(ev.Step)))
	}
	if ev.From != "" {
		attrs = append(attrs, attribute.String("onboarding.from", string(ev.From)))
	}
	if ev.ClientType != "" {
		attrs = append(attrs, attribute.String("onboarding.client_type", string(ev.ClientType)))
	}
	if ev.Ordinal != 0 {
		attrs = append(attrs, attribute.Int("onboarding.ordinal", ev.Ordinal))
	}
	if ev.Duration != 0 {
		attrs = append(attrs, attribute.Int64("onboarding.duration_ms", ev.Duration.Milliseconds()))
	}
	if ev.Message != "" {
		attrs = append(attrs, attribute.String("onboarding.message", ev.Message))
	}
	span.AddEvent(string(ev.Kind), trace.WithAttributes(attrs...))

	switch ev.Kind {
	case observerport.KindRemoteCallFailed, observerport.KindCatalogFetchFailed:
		span.RecordError(errors.New(ev.Message))
		span.SetStatus(codes.Error, ev.Message)
	}
}
