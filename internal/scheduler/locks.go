package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// tryLock reports whether the caller may sweep userID. A lock backend error
// is logged and treated as granted; the status compare-and-swap still guards every row.
func (s *Scheduler) tryLock(ctx context.Context, userID string) (string, bool) {
	if s.locks == nil {
		return "", true
	}
	token, ok, err := s.locks.TryLockUser(ctx, userID)
	if err != nil {
		s.logger(ctx).Warn("sweep lock unavailable, continuing unlocked",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return "", true
	}
	return token, ok
}

func (s *Scheduler) release(ctx context.Context, userID, token string) {
	if s.locks == nil || token == "" {
		return
	}
	if err := s.locks.ReleaseUser(context.WithoutCancel(ctx), userID, token); err != nil {
		s.logger(ctx).Warn("sweep lock release failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// withUser runs fn under userID's lock unless scope already holds it.
// A user locked by another worker is skipped.
func (s *Scheduler) withUser(ctx context.Context, scope sweepScope, job, userID string, fn func() error) error {
	if scope.locked {
		return fn()
	}
	token, ok := s.tryLock(ctx, userID)
	if !ok {
		s.metrics.IncLockSkipped(job)
		return nil
	}
	defer s.release(ctx, userID, token)
	return fn()
}
