package scheduler

import (
	"context"
	"errors"
	"time"

	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/internal/scheduler/guard"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
)

// expireGrace deactivates PENDING subscriptions whose grace window has run out.
func (s *Scheduler) expireGrace(ctx context.Context, scope sweepScope) error {
	now := s.clock.Now()
	cutoff := now.Add(-s.billing.Get().GraceWindow)
	filter := subscriptiondomain.SweepFilter{UserID: scope.userID, Limit: s.cfg.BatchSize}

	var errs error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}

		batch, err := s.subscriptions.GraceExpired(ctx, cutoff, filter)
		if err != nil {
			return errors.Join(errs, err)
		}
		if len(batch) == 0 {
			return errs
		}

		for _, sub := range batch {
			sub := sub
			err := s.withUser(ctx, scope, JobExpiry, sub.UserID, func() error {
				return s.expireOne(ctx, sub, cutoff, now)
			})
			errs = errors.Join(errs, err)
		}
		jobRunFromContext(ctx).AddProcessed(len(batch))
		s.metrics.AddBatchProcessed(JobExpiry, obsmetrics.ResourceSubscriptions, len(batch))

		filter.AfterID = batch[len(batch)-1].ID
		if len(batch) < filter.Limit {
			return errs
		}
	}
}

func (s *Scheduler) expireOne(ctx context.Context, sub subscriptiondomain.Subscription, cutoff, now time.Time) error {
	if err := guard.EnsureGraceElapsed(sub.Status, sub.PendingSince, cutoff); err != nil {
		return nil
	}

	moved, err := s.subscriptions.Transition(ctx, s.db, sub, subscriptiondomain.StatusInactive, now)
	if err != nil {
		s.logSchedulerError(ctx, "subscription expiry failed", JobExpiry, sub, err)
		return err
	}
	if moved {
		s.logTransition(ctx, sub, subscriptiondomain.StatusInactive)
	}
	return nil
}
