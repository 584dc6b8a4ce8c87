package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// InternalTransfer records a wallet-to-wallet movement between two users.
type InternalTransfer struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SenderUserID   string       `gorm:"type:varchar(191);not null;index" json:"sender_user_id"`
	ReceiverUserID string       `gorm:"type:varchar(191);not null;index" json:"receiver_user_id"`
	Amount         money.Money  `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status         Status       `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (InternalTransfer) TableName() string { return "internal_transfers" }
