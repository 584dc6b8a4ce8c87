package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/transfers"),
		attribute.String("amount", "50.00"),
		attribute.String("email", "a@b.c"),
	)
	if assert.Len(t, attrs, 1) {
		assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
	}
}

func TestSafeErrorDetachesChain(t *testing.T) {
	inner := errors.New("driver detail")
	err := SafeError(fmt.Errorf("debit wallet: %w", inner))

	assert.EqualError(t, err, "debit wallet: driver detail")
	assert.False(t, errors.Is(err, inner))
	assert.Nil(t, SafeError(nil))
}
