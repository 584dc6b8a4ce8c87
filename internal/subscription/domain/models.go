// Package domain contains the subscription record and its status machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/datatypes"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
	StatusInactive  Status = "INACTIVE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusCancelled, StatusInactive:
		return true
	}
	return false
}

// transitions lists every allowed move. ACTIVE to ACTIVE is a renewal.
var transitions = map[Status][]Status{
	StatusActive:  {StatusActive, StatusPending, StatusCancelled},
	StatusPending: {StatusActive, StatusInactive, StatusCancelled},
}

// CanTransition reports whether a subscription in from may move to to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Subscription is a purchased recurring plan at a third-party service.
type Subscription struct {
	ID                   snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID               string         `gorm:"type:varchar(191);not null;index:idx_subscriptions_user_created,priority:1" json:"user_id"`
	ServiceKey           string         `gorm:"type:varchar(64);not null" json:"service_key"`
	ServiceName          string         `gorm:"type:text;not null" json:"service_name"`
	PlanCode             string         `gorm:"type:text;not null" json:"plan_code"`
	PlanName             string         `gorm:"type:text;not null" json:"plan_name"`
	PlanDurationMonths   int            `gorm:"not null" json:"plan_duration_months"`
	PlanMembers          int            `gorm:"not null" json:"plan_members"`
	BasePrice            money.Money    `gorm:"type:numeric(14,2);not null" json:"base_price"`
	GSTAmount            money.Money    `gorm:"column:gst_amount;type:numeric(14,2);not null" json:"gst_amount"`
	TotalPrice           money.Money    `gorm:"type:numeric(14,2);not null" json:"total_price"`
	MonthlyCost          money.Money    `gorm:"type:numeric(14,2);not null" json:"monthly_cost"`
	ServiceAccountID     snowflake.ID   `gorm:"not null" json:"service_account_id"`
	ExternalAccountEmail string         `gorm:"type:text;not null" json:"external_account_email"`
	FreeTrialTaken       bool           `gorm:"not null;default:false" json:"free_trial_taken"`
	FreeTrialEndsAt      *time.Time     `json:"free_trial_ends_at,omitempty"`
	PendingSince         *time.Time     `json:"pending_since,omitempty"`
	NextBillingDate      datatypes.Date `gorm:"type:date;not null;index" json:"next_billing_date"`
	Status               Status         `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt            time.Time      `gorm:"not null;index:idx_subscriptions_user_created,priority:2" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// DueOn returns the billing date as a UTC calendar day.
func (s Subscription) DueOn() time.Time {
	return DateOf(time.Time(s.NextBillingDate))
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves a billing date forward by n months, n below one counts as one.
func AddMonths(day time.Time, n int) time.Time {
	return DateOf(day).AddDate(0, max(1, n), 0)
}
