package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

// PrimaryKey is the singleton key of the only escrow row.
const PrimaryKey = "primary"

// EscrowAccount is the pooled balance that simulates external settlement.
type EscrowAccount struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SingletonKey string       `gorm:"type:varchar(32);not null;uniqueIndex:ux_escrow_accounts_singleton" json:"-"`
	TotalBalance money.Money  `gorm:"type:numeric(14,2);not null" json:"total_balance"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (EscrowAccount) TableName() string { return "escrow_accounts" }
