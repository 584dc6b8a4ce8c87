package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, user_id, service_key, service_name, plan_code, plan_name,
	plan_duration_months, plan_members, base_price, gst_amount, total_price, monthly_cost,
	service_account_id, external_account_email, free_trial_taken, free_trial_ends_at,
	pending_since, next_billing_date, status, created_at, updated_at
	FROM subscriptions`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, user_id, service_key, service_name, plan_code, plan_name,
			plan_duration_months, plan_members, base_price, gst_amount, total_price, monthly_cost,
			service_account_id, external_account_email, free_trial_taken, free_trial_ends_at,
			pending_since, next_billing_date, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.ServiceKey,
		s.ServiceName,
		s.PlanCode,
		s.PlanName,
		s.PlanDurationMonths,
		s.PlanMembers,
		s.BasePrice,
		s.GSTAmount,
		s.TotalPrice,
		s.MonthlyCost,
		s.ServiceAccountID,
		s.ExternalAccountEmail,
		s.FreeTrialTaken,
		s.FreeTrialEndsAt,
		s.PendingSince,
		s.NextBillingDate,
		s.Status,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE id = ? AND user_id = ?`,
		id,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, userID, serviceKey, email, planName string) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE user_id = ? AND service_key = ? AND external_account_email = ? AND plan_name = ? AND status = ?
		LIMIT 1`,
		userID,
		serviceKey,
		email,
		planName,
		domain.StatusActive,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ActivePlanNames(ctx context.Context, db *gorm.DB, userID, serviceKey, email string) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Raw(
		`SELECT plan_name FROM subscriptions
		 WHERE user_id = ? AND service_key = ? AND external_account_email = ? AND status = ?`,
		userID,
		serviceKey,
		email,
		domain.StatusActive,
	).Scan(&names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *repo) CountFreeTrials(ctx context.Context, db *gorm.DB, userID, serviceKey, email string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscriptions
		 WHERE user_id = ? AND service_key = ? AND external_account_email = ? AND free_trial_ends_at IS NOT NULL`,
		userID,
		serviceKey,
		email,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, day time.Time, filter domain.SweepFilter) ([]domain.Subscription, error) {
	query := selectColumns + ` WHERE status IN (?, ?) AND next_billing_date <= ? AND id > ?`
	args := []any{domain.StatusActive, domain.StatusPending, day, filter.AfterID}
	return r.sweep(ctx, db, query, args, filter)
}

func (r *repo) ListGraceExpired(ctx context.Context, db *gorm.DB, cutoff time.Time, filter domain.SweepFilter) ([]domain.Subscription, error) {
	query := selectColumns + ` WHERE status = ? AND pending_since IS NOT NULL AND pending_since <= ? AND id > ?`
	args := []any{domain.StatusPending, cutoff, filter.AfterID}
	return r.sweep(ctx, db, query, args, filter)
}

func (r *repo) sweep(ctx context.Context, db *gorm.DB, query string, args []any, filter domain.SweepFilter) ([]domain.Subscription, error) {
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []domain.Subscription
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Renew(ctx context.Context, db *gorm.DB, id snowflake.ID, expected domain.Status, billedOn, next time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, pending_since = NULL, free_trial_taken = ?, next_billing_date = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND next_billing_date = ?`,
		domain.StatusActive,
		false,
		next,
		now,
		id,
		expected,
		billedOn,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, pendingSince *time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, pending_since = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		pendingSince,
		now,
		id,
		from,
	)
	return result.RowsAffected, result.Error
}
