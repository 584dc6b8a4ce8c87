package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a****@example.com", MaskEmail(" alice@example.com "))
	assert.Equal(t, "****", MaskEmail("@x"))
	assert.Equal(t, "****mple", MaskEmail("example"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****6789", MaskSecret("123456789"))
}
