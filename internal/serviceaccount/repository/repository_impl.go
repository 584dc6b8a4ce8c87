package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, user_id, service_key, service_name, username, email, password_hash,
	accepted_terms, created_at, updated_at
	FROM subscription_service_accounts`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_service_accounts (
			id, user_id, service_key, service_name, username, email, password_hash,
			accepted_terms, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.UserID,
		account.ServiceKey,
		account.ServiceName,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.AcceptedTerms,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE id = ? AND user_id = ?`,
		id,
		userID,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, userID, serviceKey, email string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE user_id = ? AND service_key = ? AND email = ?`,
		userID,
		serviceKey,
		email,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) UpdatePasswordHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscription_service_accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash,
		now,
		id,
	).Error
}
