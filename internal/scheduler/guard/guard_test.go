package guard

import (
	"testing"
	"time"

	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
)

func TestEnsureSubscriptionCanRenew(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, EnsureSubscriptionCanRenew(subscriptiondomain.StatusActive, today, today))
	assert.NoError(t, EnsureSubscriptionCanRenew(subscriptiondomain.StatusPending, today.AddDate(0, 0, -3), today))
	assert.ErrorIs(t, EnsureSubscriptionCanRenew(subscriptiondomain.StatusActive, today.AddDate(0, 0, 1), today), ErrNotDue)
	assert.ErrorIs(t, EnsureSubscriptionCanRenew(subscriptiondomain.StatusInactive, today, today), ErrNotRenewable)
	assert.ErrorIs(t, EnsureSubscriptionCanRenew(subscriptiondomain.StatusCancelled, today, today), ErrNotRenewable)
}

func TestEnsureGraceElapsed(t *testing.T) {
	cutoff := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	before := cutoff.Add(-time.Minute)
	after := cutoff.Add(time.Minute)

	assert.NoError(t, EnsureGraceElapsed(subscriptiondomain.StatusPending, &before, cutoff))
	assert.NoError(t, EnsureGraceElapsed(subscriptiondomain.StatusPending, &cutoff, cutoff))
	assert.ErrorIs(t, EnsureGraceElapsed(subscriptiondomain.StatusPending, &after, cutoff), ErrGraceNotElapsed)
	assert.ErrorIs(t, EnsureGraceElapsed(subscriptiondomain.StatusPending, nil, cutoff), ErrMissingPending)
	assert.ErrorIs(t, EnsureGraceElapsed(subscriptiondomain.StatusActive, &before, cutoff), ErrNotPending)
}
