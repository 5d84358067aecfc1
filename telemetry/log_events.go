package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordDecisionEvent emits a structured span event for a reap decision
func RecordDecisionEvent(
	span trace.Span,
	action string,
	resourceID string,
	idleHours float64,
	reason string,
) {
	if span == nil {
		return
	}

	span.AddEvent("reaper.decision.made", trace.WithAttributes(
		attribute.String("event.type", "reaper.decision.made"),
		attribute.String("decision.action", action),
		attribute.String("resource.id", resourceID),
		attribute.Float64("idle.hours", idleHours),
		attribute.String("reason", reason),
	))
}

// RecordShutdownEvent emits a structured span event for an executed shutdown
func RecordShutdownEvent(
	span trace.Span,
	resourceID string,
	resourceName string,
	idleHours float64,
	status string,
	errorMsg string,
) {
	if span == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("event.type", "reaper.shutdown.executed"),
		attribute.String("resource.id", resourceID),
		attribute.String("resource.name", resourceName),
		attribute.Float64("idle.hours", idleHours),
		attribute.String("status", status),
	}
	if errorMsg != "" {
		attrs = append(attrs, attribute.String("error.message", errorMsg))
	}

	span.AddEvent("reaper.shutdown.executed", trace.WithAttributes(attrs...))
}
