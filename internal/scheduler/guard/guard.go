// Package guard holds the preconditions the billing sweeps re-check on every row
// before acting, since rows are listed outside the transaction that changes them.
package guard

import (
	"errors"
	"time"

	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
)

var (
	ErrNotRenewable    = errors.New("subscription_not_renewable")
	ErrNotDue          = errors.New("subscription_not_due")
	ErrNotPending      = errors.New("subscription_not_pending")
	ErrMissingPending  = errors.New("subscription_missing_pending_since")
	ErrGraceNotElapsed = errors.New("grace_window_not_elapsed")
)

// EnsureSubscriptionCanRenew accepts ACTIVE and PENDING rows billed on or before today.
func EnsureSubscriptionCanRenew(status subscriptiondomain.Status, dueOn, today time.Time) error {
	if status != subscriptiondomain.StatusActive && status != subscriptiondomain.StatusPending {
		return ErrNotRenewable
	}
	if dueOn.After(today) {
		return ErrNotDue
	}
	return nil
}

// EnsureGraceElapsed accepts PENDING rows whose grace window ended at or before cutoff.
func EnsureGraceElapsed(status subscriptiondomain.Status, pendingSince *time.Time, cutoff time.Time) error {
	if status != subscriptiondomain.StatusPending {
		return ErrNotPending
	}
	if pendingSince == nil {
		return ErrMissingPending
	}
	if pendingSince.After(cutoff) {
		return ErrGraceNotElapsed
	}
	return nil
}
