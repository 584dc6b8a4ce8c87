package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/internal/transfer/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 10

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Wallets    walletdomain.Store
	LedgerSvc  ledgerdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	wallets    walletdomain.Store
	ledgerSvc  ledgerdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("transfer.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		wallets:    p.Wallets,
		ledgerSvc:  p.LedgerSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (domain.InternalTransfer, error) {
	transfer, err := s.transfer(ctx, req)
	s.obsMetrics.RecordTransfer(ctx, outcome(err))
	return transfer, err
}

func (s *Service) transfer(ctx context.Context, req domain.TransferRequest) (domain.InternalTransfer, error) {
	if !req.Amount.IsPositive() {
		return domain.InternalTransfer{}, walletdomain.ErrInvalidAmount
	}
	target, err := walletdomain.NormalizePublicID(req.TargetPublicID)
	if err != nil {
		return domain.InternalTransfer{}, err
	}

	sender, err := s.wallets.GetOrCreate(ctx, strings.TrimSpace(req.SenderUserID))
	if err != nil {
		return domain.InternalTransfer{}, err
	}
	if sender.PublicID == target {
		return domain.InternalTransfer{}, domain.ErrSelfTransfer
	}

	receiver, err := s.wallets.GetByPublicID(ctx, target)
	if err != nil {
		if errors.Is(err, walletdomain.ErrNotFound) {
			return domain.InternalTransfer{}, domain.ErrReceiverNotFound
		}
		return domain.InternalTransfer{}, err
	}
	if receiver.UserID == sender.UserID {
		return domain.InternalTransfer{}, domain.ErrSelfTransfer
	}

	transfer := domain.InternalTransfer{
		ID:             s.genID.Generate(),
		SenderUserID:   sender.UserID,
		ReceiverUserID: receiver.UserID,
		Amount:         req.Amount,
		Status:         domain.StatusCompleted,
		CreatedAt:      s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Both rows are locked in id order so opposing transfers queue instead
		// of deadlocking.
		if err := s.wallets.Lock(ctx, tx, sender.ID, receiver.ID); err != nil {
			if errors.Is(err, walletdomain.ErrNotFound) {
				return domain.ErrReceiverNotFound
			}
			return fmt.Errorf("lock wallets: %w", err)
		}
		// Sender first: an insufficient balance aborts before anything else is written.
		if _, err := s.wallets.Debit(ctx, tx, sender.ID, req.Amount); err != nil {
			return err
		}
		if _, err := s.wallets.Credit(ctx, tx, receiver.ID, req.Amount); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}
		if err := s.repo.Insert(ctx, tx, &transfer); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		if _, err := s.ledgerSvc.Append(ctx, tx, ledgerdomain.Entry{
			UserID:        sender.UserID,
			WalletID:      sender.ID,
			Amount:        req.Amount,
			Kind:          ledgerdomain.KindTransferOut,
			ReferenceType: ledgerdomain.ReferenceInternalTransfer,
			ReferenceID:   transfer.ID,
			Description:   fmt.Sprintf("Transferred %s to %s.", req.Amount, receiver.PublicID),
		}); err != nil {
			return err
		}
		_, err := s.ledgerSvc.Append(ctx, tx, ledgerdomain.Entry{
			UserID:        receiver.UserID,
			WalletID:      receiver.ID,
			Amount:        req.Amount,
			Kind:          ledgerdomain.KindTransferIn,
			ReferenceType: ledgerdomain.ReferenceInternalTransfer,
			ReferenceID:   transfer.ID,
			Description:   fmt.Sprintf("Received %s from %s.", req.Amount, sender.PublicID),
		})
		return err
	})
	if err != nil {
		return domain.InternalTransfer{}, err
	}

	s.log.Info("internal transfer completed",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("sender_user_id", sender.UserID),
		zap.String("receiver_user_id", receiver.UserID),
	)
	return transfer, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) (domain.History, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	sent, err := s.repo.ListSent(ctx, s.db, userID, limit)
	if err != nil {
		return domain.History{}, err
	}
	received, err := s.repo.ListReceived(ctx, s.db, userID, limit)
	if err != nil {
		return domain.History{}, err
	}
	if sent == nil {
		sent = []domain.InternalTransfer{}
	}
	if received == nil {
		received = []domain.InternalTransfer{}
	}
	return domain.History{Sent: sent, Received: received}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, walletdomain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrSelfTransfer), errors.Is(err, domain.ErrReceiverNotFound),
		errors.Is(err, walletdomain.ErrInvalidPublicID), errors.Is(err, walletdomain.ErrInvalidAmount):
		return "rejected"
	default:
		return "failed"
	}
}
