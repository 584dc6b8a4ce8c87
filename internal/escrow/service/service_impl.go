package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/escrow/domain"
	"github.com/smallbiznis/pxwallet/pkg/db"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("escrow.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, conn *gorm.DB) (domain.EscrowAccount, error) {
	existing, err := s.repo.FindByKey(ctx, conn, domain.PrimaryKey)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	account := domain.EscrowAccount{
		ID:           s.genID.Generate(),
		SingletonKey: domain.PrimaryKey,
		TotalBalance: money.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The nested transaction becomes a savepoint inside a caller's transaction,
	// so a lost race does not poison it.
	err = conn.Transaction(func(sp *gorm.DB) error {
		return s.repo.Insert(ctx, sp, &account)
	})
	if err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.EscrowAccount{}, err
		}
		// Lost the creation race; the unique singleton key guarantees one winner.
		winner, findErr := s.repo.FindByKey(ctx, conn, domain.PrimaryKey)
		if findErr != nil {
			return domain.EscrowAccount{}, findErr
		}
		if winner == nil {
			return domain.EscrowAccount{}, domain.ErrNotFound
		}
		return *winner, nil
	}

	s.log.Info("escrow account created", zap.String("escrow_id", account.ID.String()))
	return account, nil
}

func (s *Service) Adjust(ctx context.Context, conn *gorm.DB, delta money.Money) (domain.EscrowAccount, error) {
	if delta.IsZero() {
		return domain.EscrowAccount{}, domain.ErrInvalidDelta
	}

	account, err := s.GetOrCreate(ctx, conn)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	affected, err := s.repo.AddBalance(ctx, conn, account.ID, delta, s.clock.Now())
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if affected == 0 {
		return domain.EscrowAccount{}, domain.ErrInsufficientBalance
	}

	updated, err := s.repo.FindByKey(ctx, conn, domain.PrimaryKey)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if updated == nil {
		return domain.EscrowAccount{}, domain.ErrNotFound
	}
	return *updated, nil
}
