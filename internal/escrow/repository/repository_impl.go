package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/escrow/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.EscrowAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO escrow_accounts (id, singleton_key, total_balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.ID,
		account.SingletonKey,
		account.TotalBalance,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key string) (*domain.EscrowAccount, error) {
	var account domain.EscrowAccount
	err := db.WithContext(ctx).Raw(
		`SELECT id, singleton_key, total_balance, created_at, updated_at
		 FROM escrow_accounts WHERE singleton_key = ?`,
		key,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// AddBalance applies delta unless it would take the pool below zero, in which
// case no row is affected.
func (r *repo) AddBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta money.Money, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE escrow_accounts SET total_balance = ROUND(total_balance + ?, 2), updated_at = ?
		 WHERE id = ? AND total_balance + ? >= 0`,
		delta,
		now,
		id,
		delta,
	)
	return result.RowsAffected, result.Error
}
