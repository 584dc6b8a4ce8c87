package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	// Create inserts a new subscription inside the caller's transaction.
	Create(ctx context.Context, tx *gorm.DB, subscription *Subscription) error
	Get(ctx context.Context, userID, id string) (Subscription, error)
	List(ctx context.Context, userID string) ([]Subscription, error)
	Cancel(ctx context.Context, userID, id string) (Subscription, error)

	// FindActive looks up the ACTIVE row for (user, service, account email, plan name).
	FindActive(ctx context.Context, tx *gorm.DB, userID, serviceKey, email, planName string) (*Subscription, error)
	ActivePlanNames(ctx context.Context, userID, serviceKey, email string) (map[string]bool, error)
	HasTakenFreeTrial(ctx context.Context, userID, serviceKey, email string) (bool, error)

	DueForRenewal(ctx context.Context, day time.Time, filter SweepFilter) ([]Subscription, error)
	GraceExpired(ctx context.Context, cutoff time.Time, filter SweepFilter) ([]Subscription, error)
	// Renew advances sub by one month inside tx. False means another writer moved it first.
	Renew(ctx context.Context, tx *gorm.DB, sub Subscription, now time.Time) (bool, error)
	// Transition moves sub to status inside tx. False means another writer moved it first.
	Transition(ctx context.Context, tx *gorm.DB, sub Subscription, to Status, now time.Time) (bool, error)
}

var (
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrAlreadyActive       = errors.New("subscription_already_active")
	ErrNotFound            = errors.New("subscription_not_found")
)
