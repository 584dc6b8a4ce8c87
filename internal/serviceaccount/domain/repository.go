package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, userID, serviceKey, email string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string, now time.Time) error
}
