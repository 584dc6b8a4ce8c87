package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transfer *InternalTransfer) error
	ListSent(ctx context.Context, db *gorm.DB, userID string, limit int) ([]InternalTransfer, error)
	ListReceived(ctx context.Context, db *gorm.DB, userID string, limit int) ([]InternalTransfer, error)
}
