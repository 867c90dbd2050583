package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/authorization"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobPayoutSweep   = "payout_sweep"
	sweepProcessedBy = "scheduler"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	PaymentSvc paymentdomain.Service
	AuthzSvc   authorization.Service
	Clock      clock.Clock `optional:"true"`
	Config     Config      `optional:"true"`
}

// Scheduler runs the automatic payout sweep on a cron schedule.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	authzSvc   authorization.Service

	mu       sync.Mutex
	cron     *cron.Cron
	schedule cron.Schedule
	nextRun  time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.PaymentSvc == nil || p.AuthzSvc == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      clk,
		paymentSvc: p.PaymentSvc,
		authzSvc:   p.AuthzSvc,
	}, nil
}

// Start registers the sweep with cron. It is a no-op when no schedule is configured.
func (s *Scheduler) Start() error {
	if s.cfg.Cron == "" {
		s.log.Info("payout sweep disabled")
		return nil
	}
	schedule, err := cron.ParseStandard(s.cfg.Cron)
	if err != nil {
		return fmt.Errorf("%w: cron %q: %v", ErrInvalidConfig, s.cfg.Cron, err)
	}

	cronLog := cron.PrintfLogger(zap.NewStdLog(s.log))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = c
	s.schedule = schedule
	s.nextRun = schedule.Next(s.clock.Now().UTC())
	s.mu.Unlock()

	c.Schedule(schedule, cron.FuncJob(s.tick))
	c.Start()
	s.log.Info("payout sweep scheduled", zap.String("cron", s.cfg.Cron))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	now := s.clock.Now().UTC()

	s.mu.Lock()
	ctx := s.ctx
	lag := now.Sub(s.nextRun)
	s.nextRun = s.schedule.Next(now)
	s.mu.Unlock()

	obsmetrics.Scheduler().ObserveRunLoopLag(lag)
	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the next tick picks up the remaining users.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobPayoutSweep, s.cfg.BatchSize, s.cfg.JobTimeout, s.PayoutSweepJob)
}

// PayoutSweepJob opens a pending payment batch for every user holding at least one
// whole payout unit. Users already being settled are skipped until the next run.
func (s *Scheduler) PayoutSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, jobPayoutSweep, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	if err := s.authzSvc.AuthorizeSystem(ctx, authorization.ObjectPayment, authorization.ActionPaymentListEligible); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.payout.forbidden", jobPayoutSweep, 0, err)
		return err
	}
	if err := s.authzSvc.AuthorizeSystem(ctx, authorization.ObjectPayment, authorization.ActionPaymentRequest); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.payout.forbidden", jobPayoutSweep, 0, err)
		return err
	}

	users, err := s.paymentSvc.ListEligibleUsers(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.payout.list_failed", jobPayoutSweep, 0, err)
		return err
	}
	if len(users) > s.cfg.BatchSize {
		users = users[:s.cfg.BatchSize]
	}

	schedMetrics := obsmetrics.Scheduler()
	var jobErr error
	for _, user := range users {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		userID, err := snowflake.ParseString(user.UserID)
		if err != nil {
			continue
		}

		batch, err := s.paymentSvc.SettleUser(ctx, userID, paymentdomain.StatusPending, sweepProcessedBy)
		switch {
		case err == nil:
			run.AddProcessed(1)
			schedMetrics.AddBatchProcessed(jobPayoutSweep, "payment_batch", 1)
			s.logger(ctx).Info("scheduler.payout.created",
				zap.String("user_id", user.UserID),
				zap.String("payment_id", batch.ID),
				zap.Int64("amount", batch.Amount),
			)
		case errors.Is(err, paymentdomain.ErrSettlementInProgress),
			errors.Is(err, paymentdomain.ErrConcurrentSettlement):
			schedMetrics.IncBatchDeferred(jobPayoutSweep, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		case errors.Is(err, paymentdomain.ErrInsufficientRecordings):
			// Recordings were paid or deleted since the eligibility query.
			schedMetrics.IncBatchDeferred(jobPayoutSweep, obsmetrics.SchedulerBatchDeferredReasonBelowMinimum)
		default:
			s.logSchedulerError(ctx, run, "scheduler.payout.settle_failed", jobPayoutSweep, userID, err)
			jobErr = errors.Join(jobErr, err)
		}
	}

	return jobErr
}
