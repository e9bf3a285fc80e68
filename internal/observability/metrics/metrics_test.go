package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsIdentifiers(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("business_id", "123"),
		attribute.String("order_id", "456"),
		attribute.String("courier_type", "own_courier"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "courier_type" {
		t.Fatalf("expected courier_type to be retained, got %s", attrs[0].Key)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordInvoiceIssued(context.Background(), "standard")
	m.RecordCommission(context.Background(), "click_collect", "pending")
	m.RecordTablePayment(context.Background(), "split", "cash")
}

func TestNewNoop(t *testing.T) {
	m := NewNoop()
	if m == nil {
		t.Fatal("expected noop metrics")
	}
	m.RecordStorno(context.Background(), "success")
}
