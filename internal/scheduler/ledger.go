package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"gorm.io/gorm"
)

// errRenewalRaced means another sweep renewed or moved the subscription first.
var errRenewalRaced = errors.New("renewal_raced")

// chargeRenewal debits one month, advances the billing date and writes the
// ledger row in a single transaction. Any failure leaves all three untouched.
func (s *Scheduler) chargeRenewal(
	ctx context.Context,
	wallet walletdomain.Wallet,
	sub subscriptiondomain.Subscription,
	now time.Time,
) (ledgerdomain.Transaction, error) {
	var txn ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub.MonthlyCost.IsPositive() {
			if _, err := s.wallets.Debit(ctx, tx, wallet.ID, sub.MonthlyCost); err != nil {
				return err
			}
		}

		renewed, err := s.subscriptions.Renew(ctx, tx, sub, now)
		if err != nil {
			return err
		}
		if !renewed {
			return errRenewalRaced
		}
		if !sub.MonthlyCost.IsPositive() {
			return nil
		}

		txn, err = s.ledgerSvc.Append(ctx, tx, ledgerdomain.Entry{
			UserID:        sub.UserID,
			WalletID:      wallet.ID,
			Amount:        sub.MonthlyCost,
			Kind:          ledgerdomain.KindDebit,
			ReferenceType: ledgerdomain.ReferenceSubscriptionRenewal,
			ReferenceID:   sub.ID,
			Description:   fmt.Sprintf("Renewed %s - %s.", sub.ServiceName, sub.PlanName),
			Status:        ledgerdomain.StatusSuccessful,
		})
		return err
	})
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}
	return txn, nil
}
