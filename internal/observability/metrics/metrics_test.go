package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_type", "checkout.session.completed"),
		attribute.String("customer_email", "jane@example.com"),
		attribute.String("session_id", "cs_test_123"),
		attribute.String("outcome", "processed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "customer_email" || attr.Key == "session_id" {
			t.Fatalf("expected %s to be dropped", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordLead(context.Background(), "enquiry", "form")
	m.RecordWebhookEvent(context.Background(), "checkout.session.completed", "processed")
	m.RecordCheckoutSession(context.Background(), "static", "created")
	m.RecordRateLimitDenied(context.Background(), "/api/leads")
	m.RecordSchedulerJob(context.Background(), "webhook_replay", "ok")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordLead(context.Background(), "pay", "webhook")
}
