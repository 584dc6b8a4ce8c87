package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReceipt(t *testing.T) {
	doc, err := New().RenderReceipt(context.Background(), ReceiptData{
		ReceiptNumber:   "1789",
		IssuedAt:        "2026-03-10",
		AccountEmail:    "alice@example.com",
		ServiceName:     "Netflix",
		PlanName:        "Standard",
		Members:         2,
		DurationMonths:  1,
		Status:          "ACTIVE",
		BasePrice:       "499.00",
		GSTAmount:       "89.82",
		GSTRate:         "18%",
		TotalPrice:      "588.82",
		MonthlyCost:     "499.00",
		NextBillingDate: "2026-04-10",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = New().RenderReceipt(context.Background(), ReceiptData{})
	assert.Error(t, err)
}
