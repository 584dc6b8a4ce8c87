package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

// Wallet is a user's spendable balance. Balance only changes through the
// guarded credit and debit statements.
type Wallet struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_wallets_user" json:"user_id"`
	PublicID  string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_wallets_public_id" json:"public_id"`
	Balance   money.Money  `gorm:"type:numeric(14,2);not null" json:"balance"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

const publicIDPrefix = "px-"

var publicIDPattern = regexp.MustCompile(`^px-[a-z0-9-]+$`)

// NewPublicID returns "px-" followed by 12 lowercase hex characters.
func NewPublicID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return publicIDPrefix + raw[:12]
}

// NormalizePublicID trims and lower-cases value and checks the accepted syntax.
func NormalizePublicID(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if !publicIDPattern.MatchString(normalized) {
		return "", ErrInvalidPublicID
	}
	return normalized, nil
}

// IsPublicID reports whether value would pass NormalizePublicID.
func IsPublicID(value string) bool {
	_, err := NormalizePublicID(value)
	return err == nil
}
