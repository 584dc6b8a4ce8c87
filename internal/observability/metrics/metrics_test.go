package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("kind", "DEBIT"),
		attribute.String("user_id", "u-1"),
		attribute.String("reference_type", "SUBSCRIPTION_RENEWAL"),
	)
	if assert.Len(t, attrs, 2) {
		assert.Equal(t, attribute.Key("kind"), attrs[0].Key)
		assert.Equal(t, attribute.Key("reference_type"), attrs[1].Key)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordLedgerEntry(context.Background(), "DEBIT", "SUBSCRIPTION_PURCHASE")
	m.RecordTransfer(context.Background(), "completed")

	NewNoop().RecordCheckout(context.Background(), "standard", "completed")
}
