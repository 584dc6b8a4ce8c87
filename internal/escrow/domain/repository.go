package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *EscrowAccount) error
	FindByKey(ctx context.Context, db *gorm.DB, key string) (*EscrowAccount, error)
	AddBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta money.Money, now time.Time) (int64, error)
}
