package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePublicID(t *testing.T) {
	got, err := NormalizePublicID("  PX-AB12-cd ")
	assert.NoError(t, err)
	assert.Equal(t, "px-ab12-cd", got)

	for _, bad := range []string{"", "px-", "px_123", "wallet", "px-ab cd", "xp-123"} {
		_, err := NormalizePublicID(bad)
		assert.ErrorIs(t, err, ErrInvalidPublicID, bad)
	}

	assert.Regexp(t, `^px-[0-9a-f]{12}$`, NewPublicID())
	assert.True(t, IsPublicID(NewPublicID()))
}
