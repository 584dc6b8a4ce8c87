package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/subscription/domain"
	"github.com/smallbiznis/pxwallet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cancelAttempts bounds the retries when a concurrent sweep moves the row during Cancel.
const cancelAttempts = 3

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, sub *domain.Subscription) error {
	if sub == nil || sub.ID == 0 || strings.TrimSpace(sub.UserID) == "" {
		return domain.ErrInvalidSubscription
	}
	if !sub.Status.Valid() {
		return domain.ErrInvalidStatus
	}
	// Savepoint so a unique violation does not poison the caller's transaction.
	err := tx.Transaction(func(inner *gorm.DB) error {
		return s.repo.Insert(ctx, inner, sub)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyActive
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.Subscription, error) {
	subID, err := parseID(id)
	if err != nil {
		return domain.Subscription{}, err
	}
	return s.get(ctx, s.db, strings.TrimSpace(userID), subID)
}

func (s *Service) get(ctx context.Context, conn *gorm.DB, userID string, id snowflake.ID) (domain.Subscription, error) {
	if userID == "" {
		return domain.Subscription{}, domain.ErrInvalidUser
	}
	item, err := s.repo.FindByID(ctx, conn, userID, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	if item == nil {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Subscription{}
	}
	return items, nil
}

func (s *Service) Cancel(ctx context.Context, userID, id string) (domain.Subscription, error) {
	subID, err := parseID(id)
	if err != nil {
		return domain.Subscription{}, err
	}
	userID = strings.TrimSpace(userID)

	for attempt := 0; attempt < cancelAttempts; attempt++ {
		sub, err := s.get(ctx, s.db, userID, subID)
		if err != nil {
			return domain.Subscription{}, err
		}
		if sub.Status == domain.StatusCancelled {
			return sub, nil
		}
		if !domain.CanTransition(sub.Status, domain.StatusCancelled) {
			return domain.Subscription{}, domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		affected, err := s.repo.UpdateStatus(ctx, s.db, sub.ID, sub.Status, domain.StatusCancelled, nil, now)
		if err != nil {
			return domain.Subscription{}, err
		}
		if affected == 1 {
			s.log.Info("subscription cancelled",
				zap.String("user_id", userID),
				zap.String("subscription_id", sub.ID.String()),
				zap.String("from", string(sub.Status)),
			)
			sub.Status = domain.StatusCancelled
			sub.PendingSince = nil
			sub.UpdatedAt = now
			return sub, nil
		}
	}
	return domain.Subscription{}, fmt.Errorf("cancel subscription %s: status kept changing", subID)
}

func (s *Service) FindActive(ctx context.Context, tx *gorm.DB, userID, serviceKey, email, planName string) (*domain.Subscription, error) {
	if tx == nil {
		tx = s.db
	}
	return s.repo.FindActive(ctx, tx, userID, serviceKey, email, planName)
}

func (s *Service) ActivePlanNames(ctx context.Context, userID, serviceKey, email string) (map[string]bool, error) {
	names, err := s.repo.ActivePlanNames(ctx, s.db, userID, serviceKey, email)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = true
	}
	return out, nil
}

func (s *Service) HasTakenFreeTrial(ctx context.Context, userID, serviceKey, email string) (bool, error) {
	count, err := s.repo.CountFreeTrials(ctx, s.db, userID, serviceKey, email)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) DueForRenewal(ctx context.Context, day time.Time, filter domain.SweepFilter) ([]domain.Subscription, error) {
	return s.repo.ListDue(ctx, s.db, domain.DateOf(day), filter)
}

func (s *Service) GraceExpired(ctx context.Context, cutoff time.Time, filter domain.SweepFilter) ([]domain.Subscription, error) {
	return s.repo.ListGraceExpired(ctx, s.db, cutoff, filter)
}

func (s *Service) Renew(ctx context.Context, tx *gorm.DB, sub domain.Subscription, now time.Time) (bool, error) {
	if !domain.CanTransition(sub.Status, domain.StatusActive) {
		return false, domain.ErrInvalidTransition
	}
	billedOn := sub.DueOn()
	next := domain.AddMonths(billedOn, 1)
	affected, err := s.repo.Renew(ctx, tx, sub.ID, sub.Status, billedOn, next, now)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Service) Transition(ctx context.Context, tx *gorm.DB, sub domain.Subscription, to domain.Status, now time.Time) (bool, error) {
	if !domain.CanTransition(sub.Status, to) {
		return false, domain.ErrInvalidTransition
	}

	pendingSince := sub.PendingSince
	switch to {
	case domain.StatusPending:
		if sub.Status != domain.StatusPending || pendingSince == nil {
			pendingSince = &now
		}
	default:
		pendingSince = nil
	}

	affected, err := s.repo.UpdateStatus(ctx, tx, sub.ID, sub.Status, to, pendingSince, now)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidSubscription
	}
	return id, nil
}
