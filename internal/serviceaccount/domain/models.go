package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is the user's login at a third-party service a subscription is bought for.
type Account struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID        string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_service_accounts_user_service_email,priority:1" json:"user_id"`
	ServiceKey    string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_service_accounts_user_service_email,priority:2" json:"service_key"`
	ServiceName   string       `gorm:"type:text;not null" json:"service_name"`
	Username      string       `gorm:"type:text;not null" json:"username"`
	Email         string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_service_accounts_user_service_email,priority:3" json:"email"`
	PasswordHash  string       `gorm:"type:text;not null" json:"-"`
	AcceptedTerms bool         `gorm:"not null;default:false" json:"accepted_terms"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "subscription_service_accounts" }
