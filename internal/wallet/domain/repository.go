package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, wallet *Wallet) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Wallet, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Wallet, error)
	FindByPublicID(ctx context.Context, db *gorm.DB, publicID string) (*Wallet, error)
	Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, amount money.Money, now time.Time) (int64, error)
	// Debit subtracts amount only while the balance covers it and returns the affected row count.
	Debit(ctx context.Context, db *gorm.DB, id snowflake.ID, amount money.Money, now time.Time) (int64, error)
	LockByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}
