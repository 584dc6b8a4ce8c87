package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/ledger/domain"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const transactionColumns = `id, user_id, wallet_id, amount, kind, reference_type, reference_id,
	description, status, settle_after, settled_at, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.WalletID,
		txn.Amount,
		txn.Kind,
		txn.ReferenceType,
		txn.ReferenceID,
		txn.Description,
		txn.Status,
		txn.SettleAfter,
		txn.SettledAt,
		txn.CreatedAt,
	).Error
}

func (r *repo) ListByWallet(ctx context.Context, db *gorm.DB, walletID snowflake.ID, after *pagination.Cursor, limit int) ([]domain.Transaction, error) {
	var rows []domain.Transaction
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("wallet_id = ?", walletID)
	if after != nil {
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListRecentByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Transaction, error) {
	var rows []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+`
		 FROM transactions WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CountPendingByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM transactions WHERE user_id = ? AND status = ?`,
		userID,
		domain.StatusPending,
	).Scan(&count).Error
	return count, err
}

func (r *repo) SettleDue(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int64, error) {
	query := `UPDATE transactions SET status = ?, settled_at = ?
		WHERE status = ? AND settle_after IS NOT NULL AND settle_after <= ?`
	args := []any{domain.StatusSuccessful, now, domain.StatusPending, now}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	result := db.WithContext(ctx).Exec(query, args...)
	return result.RowsAffected, result.Error
}
