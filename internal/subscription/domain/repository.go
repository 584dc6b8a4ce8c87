package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SweepFilter selects one batch of subscriptions for a scheduler job.
// An empty UserID spans all users.
type SweepFilter struct {
	UserID  string
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Subscription, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]Subscription, error)
	FindActive(ctx context.Context, db *gorm.DB, userID, serviceKey, email, planName string) (*Subscription, error)
	ActivePlanNames(ctx context.Context, db *gorm.DB, userID, serviceKey, email string) ([]string, error)
	CountFreeTrials(ctx context.Context, db *gorm.DB, userID, serviceKey, email string) (int64, error)

	// ListDue returns ACTIVE and PENDING rows billed on or before day, ordered by id.
	ListDue(ctx context.Context, db *gorm.DB, day time.Time, filter SweepFilter) ([]Subscription, error)
	// ListGraceExpired returns PENDING rows whose pending_since is at or before cutoff, ordered by id.
	ListGraceExpired(ctx context.Context, db *gorm.DB, cutoff time.Time, filter SweepFilter) ([]Subscription, error)

	// Renew moves the row to ACTIVE for the next period when it is still in
	// expected with the given billing date. It returns the affected row count.
	Renew(ctx context.Context, db *gorm.DB, id snowflake.ID, expected Status, billedOn, next time.Time, now time.Time) (int64, error)
	// UpdateStatus is a compare-and-swap on the current status.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, pendingSince *time.Time, now time.Time) (int64, error)
}
