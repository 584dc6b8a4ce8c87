package repository

import (
	"context"

	"github.com/smallbiznis/pxwallet/internal/transfer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, transfer *domain.InternalTransfer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO internal_transfers (id, sender_user_id, receiver_user_id, amount, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		transfer.ID,
		transfer.SenderUserID,
		transfer.ReceiverUserID,
		transfer.Amount,
		transfer.Status,
		transfer.CreatedAt,
	).Error
}

func (r *repo) ListSent(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.InternalTransfer, error) {
	return r.list(ctx, db, "sender_user_id", userID, limit)
}

func (r *repo) ListReceived(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.InternalTransfer, error) {
	return r.list(ctx, db, "receiver_user_id", userID, limit)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, column, userID string, limit int) ([]domain.InternalTransfer, error) {
	var rows []domain.InternalTransfer
	err := db.WithContext(ctx).
		Model(&domain.InternalTransfer{}).
		Where(column+" = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
