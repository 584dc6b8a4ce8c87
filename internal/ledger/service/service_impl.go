package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry domain.Entry) (domain.Transaction, error) {
	if !entry.Amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if !entry.Kind.Valid() {
		return domain.Transaction{}, domain.ErrInvalidKind
	}
	if strings.TrimSpace(string(entry.ReferenceType)) == "" {
		return domain.Transaction{}, domain.ErrInvalidReferenceType
	}
	if entry.WalletID == 0 || strings.TrimSpace(entry.UserID) == "" {
		return domain.Transaction{}, domain.ErrInvalidWallet
	}

	status := entry.Status
	switch status {
	case "":
		status = domain.StatusSuccessful
	case domain.StatusPending, domain.StatusSuccessful:
	default:
		return domain.Transaction{}, domain.ErrInvalidStatus
	}

	txn := domain.Transaction{
		ID:            s.genID.Generate(),
		UserID:        entry.UserID,
		WalletID:      entry.WalletID,
		Amount:        entry.Amount,
		Kind:          entry.Kind,
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
		Description:   entry.Description,
		Status:        status,
		SettleAfter:   entry.SettleAfter,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, tx, &txn); err != nil {
		return domain.Transaction{}, err
	}

	s.obsMetrics.RecordLedgerEntry(ctx, string(txn.Kind), string(txn.ReferenceType))
	return txn, nil
}

func (s *Service) ListForWallet(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.WalletID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidWallet
	}

	after, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	limit := pagination.Pagination{PageSize: req.PageSize}.Size()

	rows, err := s.repo.ListByWallet(ctx, s.db, req.WalletID, after, limit+1)
	if err != nil {
		return domain.ListResponse{}, err
	}

	rows, info, err := pagination.Trim(rows, limit, func(t domain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: int64(t.ID), CreatedAt: t.CreatedAt}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if rows == nil {
		rows = []domain.Transaction{}
	}
	return domain.ListResponse{PageInfo: info, Transactions: rows}, nil
}

func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}
	rows, err := s.repo.ListRecentByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Transaction{}
	}
	return rows, nil
}

func (s *Service) HasPending(ctx context.Context, userID string) (bool, error) {
	count, err := s.repo.CountPendingByUser(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) SettleDue(ctx context.Context, userID string, now time.Time) (int64, error) {
	settled, err := s.repo.SettleDue(ctx, s.db, userID, now)
	if err != nil {
		return 0, err
	}
	if settled > 0 {
		s.log.Info("settled pending transactions",
			zap.String("user_id", userID),
			zap.Int64("count", settled),
		)
	}
	return settled, nil
}
