package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

// Store is the balance primitive other domains compose inside their own transactions.
type Store interface {
	GetOrCreate(ctx context.Context, userID string) (Wallet, error)
	GetByUserID(ctx context.Context, userID string) (Wallet, error)
	GetByPublicID(ctx context.Context, publicID string) (Wallet, error)
	Credit(ctx context.Context, tx *gorm.DB, walletID snowflake.ID, amount money.Money) (Wallet, error)
	Debit(ctx context.Context, tx *gorm.DB, walletID snowflake.ID, amount money.Money) (Wallet, error)
	// Lock row-locks every given wallet inside tx in ascending id order, so
	// callers touching several wallets always lock them in the same order.
	Lock(ctx context.Context, tx *gorm.DB, walletIDs ...snowflake.ID) error
}

type Summary struct {
	Wallet             Wallet                     `json:"wallet"`
	RecentTransactions []ledgerdomain.Transaction `json:"recent_transactions"`
	HasPending         bool                       `json:"has_pending"`
}

// Service adds the escrow-backed funding flows on top of Store.
type Service interface {
	Store
	TopUp(ctx context.Context, userID string, amount money.Money) (ledgerdomain.Transaction, error)
	Withdraw(ctx context.Context, userID string, amount money.Money) (ledgerdomain.Transaction, error)
	Summary(ctx context.Context, userID string, recent int) (Summary, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidPublicID     = errors.New("invalid_public_id")
	ErrInsufficientFunds   = errors.New("insufficient_funds")
	ErrEscrowBalanceTooLow = errors.New("escrow_balance_too_low")
	ErrNotFound            = errors.New("wallet_not_found")
)
