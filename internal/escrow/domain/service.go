package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

// Service manages the escrow singleton. Every method runs on the given handle,
// which may be an open transaction.
type Service interface {
	GetOrCreate(ctx context.Context, db *gorm.DB) (EscrowAccount, error)
	// Adjust fails with ErrInsufficientBalance when a negative delta exceeds the pool.
	Adjust(ctx context.Context, db *gorm.DB, delta money.Money) (EscrowAccount, error)
}

var (
	ErrInvalidDelta        = errors.New("invalid_delta")
	ErrNotFound            = errors.New("escrow_not_found")
	ErrInsufficientBalance = errors.New("escrow_insufficient_balance")
)
