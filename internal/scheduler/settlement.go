package scheduler

import (
	"context"

	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"go.uber.org/zap"
)

// settleDue marks withdrawals whose settlement delay has elapsed as SUCCESSFUL.
func (s *Scheduler) settleDue(ctx context.Context, scope sweepScope) error {
	settled, err := s.ledgerSvc.SettleDue(ctx, scope.userID, s.clock.Now())
	if err != nil {
		jobRunFromContext(ctx).IncError()
		s.logger(ctx).Error("settlement sweep failed",
			zap.String("job", JobSettlement),
			zap.String("user_id", scope.userID),
			zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
			zap.Error(err),
		)
		return err
	}
	if settled == 0 {
		return nil
	}

	jobRunFromContext(ctx).AddProcessed(int(settled))
	s.metrics.AddBatchProcessed(JobSettlement, obsmetrics.ResourceTransactions, int(settled))
	s.logger(ctx).Info("ledger.settled",
		zap.String("user_id", scope.userID),
		zap.Int64("count", settled),
	)
	return nil
}
