package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/pxwallet/internal/clock"
	"github.com/smallbiznis/pxwallet/internal/config"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobSweepUser  = "sweep_user"
	JobSettlement = "settlement"
	JobRenewal    = "renewal"
	JobExpiry     = "grace_expiry"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Billing       *config.BillingConfigHolder
	Subscriptions subscriptiondomain.Service
	Wallets       walletdomain.Store
	LedgerSvc     ledgerdomain.Service
	Locks         *ratelimit.SweepLocker       `optional:"true"`
	Metrics       *obsmetrics.SchedulerMetrics `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics          `optional:"true"`
	Config        Config                       `optional:"true"`
}

// userLocker serializes sweeps of one user across processes.
type userLocker interface {
	TryLockUser(ctx context.Context, userID string) (string, bool, error)
	ReleaseUser(ctx context.Context, userID, token string) error
}

type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	billing       *config.BillingConfigHolder
	subscriptions subscriptiondomain.Service
	wallets       walletdomain.Store
	ledgerSvc     ledgerdomain.Service
	locks         userLocker
	metrics       *obsmetrics.SchedulerMetrics
	obsMetrics    *obsmetrics.Metrics
}

// sweepScope narrows a job to one user. locked means the caller already holds that user's lock.
type sweepScope struct {
	userID string
	locked bool
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Billing == nil || p.Subscriptions == nil || p.Wallets == nil || p.LedgerSvc == nil {
		return nil, ErrInvalidConfig
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Scheduler()
	}
	var locks userLocker
	if p.Locks != nil {
		locks = p.Locks
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		billing:       p.Billing,
		subscriptions: p.Subscriptions,
		wallets:       p.Wallets,
		ledgerSvc:     p.LedgerSvc,
		locks:         locks,
		metrics:       metrics,
		obsMetrics:    p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	// A deadline is a soft timeout: the next run picks up where this one stopped.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) jobs(scope sweepScope) []struct {
	Name string
	Run  func(context.Context) error
} {
	return []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobSettlement, func(ctx context.Context) error { return s.settleDue(ctx, scope) }},
		{JobRenewal, func(ctx context.Context) error { return s.renewDue(ctx, scope) }},
		{JobExpiry, func(ctx context.Context) error { return s.expireGrace(ctx, scope) }},
	}
}

// RunOnce sweeps every user: settlement, then renewals, then grace expiry.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, job := range s.jobs(sweepScope{}) {
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

// SweepUser runs the same jobs for a single user. It is called from read paths,
// so a sweep already running elsewhere for this user is skipped, not awaited.
func (s *Scheduler) SweepUser(parent context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	ctx, run, owner := s.ensureJobRun(parent, JobSweepUser, s.cfg.BatchSize)
	token, ok := s.tryLock(ctx, userID)
	if !ok {
		s.metrics.IncLockSkipped(JobSweepUser)
		return nil
	}
	defer s.release(ctx, userID, token)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	scope := sweepScope{userID: userID, locked: true}
	var err error
	for _, job := range s.jobs(scope) {
		err = errors.Join(err, s.runJob(ctx, job.Name, s.cfg.JobTimeout, job.Run))
	}
	if err != nil {
		run.IncError()
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
