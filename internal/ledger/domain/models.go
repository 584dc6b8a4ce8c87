package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

// Kind is the direction of a ledger row from the wallet's point of view.
type Kind string

const (
	KindCredit      Kind = "CREDIT"
	KindDebit       Kind = "DEBIT"
	KindTransferIn  Kind = "TRANSFER_IN"
	KindTransferOut Kind = "TRANSFER_OUT"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCredit, KindDebit, KindTransferIn, KindTransferOut:
		return true
	}
	return false
}

type ReferenceType string

const (
	ReferenceEscrowTopUp          ReferenceType = "ESCROW_TOPUP"
	ReferenceBankWithdrawal       ReferenceType = "BANK_WITHDRAWAL"
	ReferenceInternalTransfer     ReferenceType = "INTERNAL_TRANSFER"
	ReferenceSubscriptionPurchase ReferenceType = "SUBSCRIPTION_PURCHASE"
	ReferenceSubscriptionRenewal  ReferenceType = "SUBSCRIPTION_RENEWAL"
)

// Status only ever moves from PENDING to SUCCESSFUL.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSuccessful Status = "SUCCESSFUL"
)

// Transaction is one immutable ledger row attached to a wallet.
type Transaction struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID        string        `gorm:"type:varchar(191);not null;index:ix_transactions_user_created,priority:1" json:"user_id"`
	WalletID      snowflake.ID  `gorm:"not null;index:ix_transactions_wallet_created,priority:1" json:"wallet_id"`
	Amount        money.Money   `gorm:"type:numeric(14,2);not null" json:"amount"`
	Kind          Kind          `gorm:"type:varchar(16);not null" json:"kind"`
	ReferenceType ReferenceType `gorm:"type:varchar(32);not null" json:"reference_type"`
	ReferenceID   snowflake.ID  `gorm:"not null" json:"reference_id"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	Status        Status        `gorm:"type:varchar(16);not null;index" json:"status"`
	SettleAfter   *time.Time    `json:"settle_after,omitempty"`
	SettledAt     *time.Time    `json:"settled_at,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;index:ix_transactions_user_created,priority:2;index:ix_transactions_wallet_created,priority:2" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// Entry is the input to Append. Status defaults to SUCCESSFUL.
type Entry struct {
	UserID        string
	WalletID      snowflake.ID
	Amount        money.Money
	Kind          Kind
	ReferenceType ReferenceType
	ReferenceID   snowflake.ID
	Description   string
	Status        Status
	SettleAfter   *time.Time
}
