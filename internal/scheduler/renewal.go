package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/pxwallet/internal/clock"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/internal/scheduler/guard"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"go.uber.org/zap"
)

const (
	renewalOutcomeRenewed = "renewed"
	renewalOutcomePending = "pending"
	renewalOutcomeSkipped = "skipped"
	renewalOutcomeFailed  = "failed"
)

// renewDue charges every subscription billed on or before today. Each row
// advances at most one period per run.
func (s *Scheduler) renewDue(ctx context.Context, scope sweepScope) error {
	now := s.clock.Now()
	today := clock.Today(now)
	filter := subscriptiondomain.SweepFilter{UserID: scope.userID, Limit: s.cfg.BatchSize}

	var errs error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}

		batch, err := s.subscriptions.DueForRenewal(ctx, today, filter)
		if err != nil {
			return errors.Join(errs, err)
		}
		if len(batch) == 0 {
			return errs
		}

		for _, sub := range batch {
			sub := sub
			err := s.withUser(ctx, scope, JobRenewal, sub.UserID, func() error {
				return s.renewOne(ctx, sub, now)
			})
			errs = errors.Join(errs, err)
		}
		jobRunFromContext(ctx).AddProcessed(len(batch))
		s.metrics.AddBatchProcessed(JobRenewal, obsmetrics.ResourceSubscriptions, len(batch))

		filter.AfterID = batch[len(batch)-1].ID
		if len(batch) < filter.Limit {
			return errs
		}
	}
}

func (s *Scheduler) renewOne(ctx context.Context, sub subscriptiondomain.Subscription, now time.Time) error {
	if err := guard.EnsureSubscriptionCanRenew(sub.Status, sub.DueOn(), clock.Today(now)); err != nil {
		s.obsMetrics.RecordRenewal(ctx, renewalOutcomeSkipped)
		return nil
	}

	wallet, err := s.wallets.GetByUserID(ctx, sub.UserID)
	if errors.Is(err, walletdomain.ErrNotFound) {
		return s.markPending(ctx, sub, now)
	}
	if err != nil {
		s.obsMetrics.RecordRenewal(ctx, renewalOutcomeFailed)
		s.logSchedulerError(ctx, "renewal wallet lookup failed", JobRenewal, sub, err)
		return err
	}

	txn, err := s.chargeRenewal(ctx, wallet, sub, now)
	switch {
	case err == nil:
	case errors.Is(err, errRenewalRaced):
		s.obsMetrics.RecordRenewal(ctx, renewalOutcomeSkipped)
		return nil
	case errors.Is(err, walletdomain.ErrInsufficientFunds):
		return s.markPending(ctx, sub, now)
	default:
		s.obsMetrics.RecordRenewal(ctx, renewalOutcomeFailed)
		s.logSchedulerError(ctx, "renewal charge failed", JobRenewal, sub, err)
		return err
	}

	s.obsMetrics.RecordRenewal(ctx, renewalOutcomeRenewed)
	s.logTransition(ctx, sub, subscriptiondomain.StatusActive)
	s.logger(ctx).Info("subscription.renewed",
		zap.String("user_id", sub.UserID),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("amount", sub.MonthlyCost.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.Time("billed_on", sub.DueOn()),
	)
	return nil
}

// markPending parks an unpaid subscription in its grace window. A row that is
// already PENDING keeps the pending_since of its first failed charge.
func (s *Scheduler) markPending(ctx context.Context, sub subscriptiondomain.Subscription, now time.Time) error {
	s.obsMetrics.RecordRenewal(ctx, renewalOutcomePending)
	if sub.Status == subscriptiondomain.StatusPending {
		return nil
	}

	moved, err := s.subscriptions.Transition(ctx, s.db, sub, subscriptiondomain.StatusPending, now)
	if err != nil {
		s.logSchedulerError(ctx, "subscription pending transition failed", JobRenewal, sub, err)
		return err
	}
	if moved {
		s.logTransition(ctx, sub, subscriptiondomain.StatusPending)
	}
	return nil
}
