package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContextStrings serializes the span context in ctx to W3C traceparent
// and tracestate values, for persisting alongside async work like outbox rows.
func TraceContextStrings(ctx context.Context) (traceparent, tracestate string) {
	mc := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, mc)
	return mc["traceparent"], mc["tracestate"]
}

// ContextWithTraceContext restores a span context persisted with
// TraceContextStrings, linking the resumed work to the original trace.
func ContextWithTraceContext(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" && tracestate == "" {
		return ctx
	}
	mc := propagation.MapCarrier{}
	mc["traceparent"] = traceparent
	if tracestate != "" {
		mc["tracestate"] = tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, mc)
}
