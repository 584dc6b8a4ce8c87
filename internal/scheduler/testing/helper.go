// Package testing moves subscriptions through billing time without waiting for the calendar.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	"gorm.io/gorm"
)

// TimeAccelerator rewrites billing dates and grace timestamps directly in the database.
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// MakeDue sets next_billing_date to day for a live subscription.
func (ta *TimeAccelerator) MakeDue(ctx context.Context, subscriptionID snowflake.ID, day time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET next_billing_date = ?
		 WHERE id = ? AND status IN (?, ?)`,
		subscriptiondomain.DateOf(day),
		subscriptionID,
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusPending,
	).Error
}

// MakeAllDue moves every live subscription of userID to day and returns how many moved.
func (ta *TimeAccelerator) MakeAllDue(ctx context.Context, userID string, day time.Time) (int64, error) {
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET next_billing_date = ?
		 WHERE user_id = ? AND status IN (?, ?)`,
		subscriptiondomain.DateOf(day),
		userID,
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusPending,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// BackdatePending moves pending_since of a PENDING subscription to since.
func (ta *TimeAccelerator) BackdatePending(ctx context.Context, subscriptionID snowflake.ID, since time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET pending_since = ?
		 WHERE id = ? AND status = ?`,
		since.UTC(),
		subscriptionID,
		subscriptiondomain.StatusPending,
	).Error
}

// SubscriptionInfo is the billing view of one subscription.
type SubscriptionInfo struct {
	ID              snowflake.ID
	UserID          string
	Status          subscriptiondomain.Status
	NextBillingDate time.Time
	PendingSince    *time.Time
}

func (ta *TimeAccelerator) GetSubscriptionInfo(ctx context.Context, subscriptionID snowflake.ID) (*SubscriptionInfo, error) {
	var sub subscriptiondomain.Subscription
	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, user_id, status, next_billing_date, pending_since
		 FROM subscriptions
		 WHERE id = ?`,
		subscriptionID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &SubscriptionInfo{
		ID:              sub.ID,
		UserID:          sub.UserID,
		Status:          sub.Status,
		NextBillingDate: sub.DueOn(),
		PendingSince:    sub.PendingSince,
	}, nil
}
