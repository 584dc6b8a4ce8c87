package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, wallet *domain.Wallet) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wallets (id, user_id, public_id, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		wallet.ID,
		wallet.UserID,
		wallet.PublicID,
		wallet.Balance,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Wallet, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Wallet, error) {
	return r.findOne(ctx, db, "user_id = ?", userID)
}

func (r *repo) FindByPublicID(ctx context.Context, db *gorm.DB, publicID string) (*domain.Wallet, error) {
	return r.findOne(ctx, db, "public_id = ?", publicID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, public_id, balance, created_at, updated_at
		 FROM wallets WHERE `+where,
		arg,
	).Scan(&wallet).Error
	if err != nil {
		return nil, err
	}
	if wallet.ID == 0 {
		return nil, nil
	}
	return &wallet, nil
}

func (r *repo) Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, amount money.Money, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE wallets SET balance = ROUND(balance + ?, 2), updated_at = ? WHERE id = ?`,
		amount,
		now,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Debit(ctx context.Context, db *gorm.DB, id snowflake.ID, amount money.Money, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE wallets SET balance = ROUND(balance - ?, 2), updated_at = ? WHERE id = ? AND ROUND(balance - ?, 2) >= 0`,
		amount,
		now,
		id,
		amount,
	)
	return result.RowsAffected, result.Error
}

// LockByIDs row-locks the given wallets in ascending id order and returns how
// many it found. SQLite has no row locks; its writers are already serialized.
func (r *repo) LockByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	query := `SELECT id FROM wallets WHERE id IN ? ORDER BY id`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	var locked []int64
	if err := db.WithContext(ctx).Raw(query, ids).Scan(&locked).Error; err != nil {
		return 0, err
	}
	return int64(len(locked)), nil
}
