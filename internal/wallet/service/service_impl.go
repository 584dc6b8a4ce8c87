package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	escrowdomain "github.com/smallbiznis/pxwallet/internal/escrow/domain"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	"github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"github.com/smallbiznis/pxwallet/pkg/db"
	"github.com/smallbiznis/pxwallet/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	EscrowSvc escrowdomain.Service
	LedgerSvc ledgerdomain.Service
	Billing   *config.BillingConfigHolder
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	escrowSvc escrowdomain.Service
	ledgerSvc ledgerdomain.Service
	billing   *config.BillingConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("wallet.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		escrowSvc: p.EscrowSvc,
		ledgerSvc: p.LedgerSvc,
		billing:   p.Billing,
	}
}

// StoreFromService exposes the balance primitives of svc to other domains.
func StoreFromService(svc domain.Service) domain.Store {
	return svc
}

func (s *Service) GetOrCreate(ctx context.Context, userID string) (domain.Wallet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Wallet{}, domain.ErrInvalidUser
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	wallet := domain.Wallet{
		ID:        s.genID.Generate(),
		UserID:    userID,
		PublicID:  domain.NewPublicID(),
		Balance:   money.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &wallet); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.Wallet{}, err
		}
		winner, findErr := s.repo.FindByUserID(ctx, s.db, userID)
		if findErr != nil {
			return domain.Wallet{}, findErr
		}
		if winner == nil {
			// The collision was on public_id, not user_id.
			return domain.Wallet{}, err
		}
		return *winner, nil
	}

	s.log.Info("wallet created",
		zap.String("user_id", userID),
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("public_id", wallet.PublicID),
	)
	return wallet, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	wallet, err := s.repo.FindByUserID(ctx, s.db, strings.TrimSpace(userID))
	if err != nil {
		return domain.Wallet{}, err
	}
	if wallet == nil {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return *wallet, nil
}

func (s *Service) GetByPublicID(ctx context.Context, publicID string) (domain.Wallet, error) {
	normalized, err := domain.NormalizePublicID(publicID)
	if err != nil {
		return domain.Wallet{}, err
	}
	wallet, err := s.repo.FindByPublicID(ctx, s.db, normalized)
	if err != nil {
		return domain.Wallet{}, err
	}
	if wallet == nil {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return *wallet, nil
}

func (s *Service) Credit(ctx context.Context, tx *gorm.DB, walletID snowflake.ID, amount money.Money) (domain.Wallet, error) {
	if !amount.IsPositive() {
		return domain.Wallet{}, domain.ErrInvalidAmount
	}
	affected, err := s.repo.Credit(ctx, tx, walletID, amount, s.clock.Now())
	if err != nil {
		return domain.Wallet{}, err
	}
	if affected == 0 {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return s.reload(ctx, tx, walletID)
}

func (s *Service) Debit(ctx context.Context, tx *gorm.DB, walletID snowflake.ID, amount money.Money) (domain.Wallet, error) {
	if !amount.IsPositive() {
		return domain.Wallet{}, domain.ErrInvalidAmount
	}
	affected, err := s.repo.Debit(ctx, tx, walletID, amount, s.clock.Now())
	if err != nil {
		return domain.Wallet{}, err
	}
	if affected == 0 {
		if _, err := s.reload(ctx, tx, walletID); err != nil {
			return domain.Wallet{}, err
		}
		return domain.Wallet{}, domain.ErrInsufficientFunds
	}
	return s.reload(ctx, tx, walletID)
}

func (s *Service) Lock(ctx context.Context, tx *gorm.DB, walletIDs ...snowflake.ID) error {
	ids := make([]snowflake.ID, 0, len(walletIDs))
	seen := make(map[snowflake.ID]struct{}, len(walletIDs))
	for _, id := range walletIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	locked, err := s.repo.LockByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if locked != int64(len(ids)) {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) reload(ctx context.Context, tx *gorm.DB, walletID snowflake.ID) (domain.Wallet, error) {
	wallet, err := s.repo.FindByID(ctx, tx, walletID)
	if err != nil {
		return domain.Wallet{}, err
	}
	if wallet == nil {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return *wallet, nil
}

func (s *Service) TopUp(ctx context.Context, userID string, amount money.Money) (ledgerdomain.Transaction, error) {
	if !amount.IsPositive() {
		return ledgerdomain.Transaction{}, domain.ErrInvalidAmount
	}
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}

	var entry ledgerdomain.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		escrow, err := s.escrowSvc.Adjust(ctx, tx, amount)
		if err != nil {
			return fmt.Errorf("fund escrow: %w", err)
		}
		if _, err := s.Credit(ctx, tx, wallet.ID, amount); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		entry, err = s.ledgerSvc.Append(ctx, tx, ledgerdomain.Entry{
			UserID:        wallet.UserID,
			WalletID:      wallet.ID,
			Amount:        amount,
			Kind:          ledgerdomain.KindTransferIn,
			ReferenceType: ledgerdomain.ReferenceEscrowTopUp,
			ReferenceID:   escrow.ID,
			Description:   fmt.Sprintf("Added %s to wallet from escrow funding.", amount),
			Status:        ledgerdomain.StatusSuccessful,
		})
		return err
	})
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}

	s.log.Info("wallet topped up",
		zap.String("user_id", wallet.UserID),
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("transaction_id", entry.ID.String()),
	)
	return entry, nil
}

func (s *Service) Withdraw(ctx context.Context, userID string, amount money.Money) (ledgerdomain.Transaction, error) {
	if !amount.IsPositive() {
		return ledgerdomain.Transaction{}, domain.ErrInvalidAmount
	}
	wallet, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}
	if wallet.Balance.LessThan(amount) {
		return ledgerdomain.Transaction{}, domain.ErrInsufficientFunds
	}

	settleAfter := s.clock.Now().Add(s.billing.Get().SettlementDelay)

	var entry ledgerdomain.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Debit(ctx, tx, wallet.ID, amount); err != nil {
			return err
		}
		// The drain is guarded; it fails instead of taking the pool below zero.
		if _, err := s.escrowSvc.Adjust(ctx, tx, amount.Neg()); err != nil {
			if errors.Is(err, escrowdomain.ErrInsufficientBalance) {
				return domain.ErrEscrowBalanceTooLow
			}
			return fmt.Errorf("drain escrow: %w", err)
		}
		entry, err = s.ledgerSvc.Append(ctx, tx, ledgerdomain.Entry{
			UserID:        wallet.UserID,
			WalletID:      wallet.ID,
			Amount:        amount,
			Kind:          ledgerdomain.KindTransferOut,
			ReferenceType: ledgerdomain.ReferenceBankWithdrawal,
			ReferenceID:   wallet.ID,
			Description:   fmt.Sprintf("Transferred %s from wallet to user's bank account.", amount),
			Status:        ledgerdomain.StatusPending,
			SettleAfter:   &settleAfter,
		})
		return err
	})
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}

	s.log.Info("withdrawal initiated",
		zap.String("user_id", wallet.UserID),
		zap.String("transaction_id", entry.ID.String()),
		zap.Time("settle_after", settleAfter),
	)
	return entry, nil
}

func (s *Service) Summary(ctx context.Context, userID string, recent int) (domain.Summary, error) {
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return domain.Summary{}, err
	}
	txns, err := s.ledgerSvc.Recent(ctx, wallet.UserID, recent)
	if err != nil {
		return domain.Summary{}, err
	}
	pending, err := s.ledgerSvc.HasPending(ctx, wallet.UserID)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{
		Wallet:             wallet,
		RecentTransactions: txns,
		HasPending:         pending,
	}, nil
}
