package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListByWallet(ctx context.Context, db *gorm.DB, walletID snowflake.ID, after *pagination.Cursor, limit int) ([]Transaction, error)
	ListRecentByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Transaction, error)
	CountPendingByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	// SettleDue flips due PENDING rows to SUCCESSFUL. An empty userID settles every user.
	SettleDue(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int64, error)
}
