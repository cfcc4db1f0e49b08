package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/clock"
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	obsmetrics "github.com/trinetlabs/trinet/internal/observability/metrics"
	pooldomain "github.com/trinetlabs/trinet/internal/pointpool/domain"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Plans    *config.PlanConfigHolder
	Config   Config `optional:"true"`
	PoolRepo pooldomain.Repository

	WalletSvc walletdomain.Service
}

// Scheduler drives the periodic wallet maintenance jobs: the monthly reset
// of per-month balances and the global point pool payout.
type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	plans     *config.PlanConfigHolder
	poolRepo  pooldomain.Repository
	walletSvc walletdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Plans == nil || p.PoolRepo == nil || p.WalletSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		plans:     p.Plans,
		poolRepo:  p.PoolRepo,
		walletSvc: p.WalletSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
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
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

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
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"monthly_reset", func(ctx context.Context) error {
			return s.runJob(ctx, "monthly_reset", s.cfg.JobTimeout, s.MonthlyResetJob)
		}},
		{"pool_distribution", func(ctx context.Context) error {
			return s.runJob(ctx, "pool_distribution", s.cfg.JobTimeout, s.PoolDistributionJob)
		}},
	}

	for _, job := range jobs {
		err = errors.Join(err, job.Run(parent))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
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

// MonthlyResetJob zeroes each wallet's monthly balances once a new calendar
// month begins. The wallet service works off last_reset_date, so running
// this every interval touches nothing until the month turns.
func (s *Scheduler) MonthlyResetJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "monthly_reset")
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	reset, err := s.walletSvc.ResetMonthly(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.monthly_reset.failed", "monthly_reset", err)
		return err
	}
	run.AddProcessed(int(reset))
	if reset > 0 {
		obsmetrics.Scheduler().AddBatchProcessed("monthly_reset", "wallets", int(reset))
		s.logger(ctx).Info("monthly balances reset", zap.Int64("wallets", reset))
	}
	return nil
}

// PoolDistributionJob pays out the previous month's point pool. The pool row
// is claimed before any wallet is credited, so a crash mid-payout can lose
// credits but never double-pay a member.
func (s *Scheduler) PoolDistributionJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "pool_distribution")
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now()
	if now.Day() < s.cfg.PoolDistributionDay {
		return nil
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := firstOfMonth.AddDate(0, 0, -1)
	pool, err := s.poolRepo.FindByPeriod(ctx, s.db, int(prev.Month()), prev.Year())
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.pool.lookup.failed", "pool_distribution", err)
		return err
	}
	if pool == nil || pool.Distributed || pool.TotalPoints <= 0 {
		return nil
	}

	share := float64(int64(pool.TotalPoints * s.plans.Current().PoolRate))
	if share <= 0 {
		claimed, err := s.poolRepo.MarkDistributed(ctx, s.db, pool.Month, pool.Year, now)
		if err == nil && claimed > 0 {
			s.logger(ctx).Info("point pool too small to distribute",
				zap.Float64("total_points", pool.TotalPoints),
			)
		}
		return err
	}

	members, err := s.fetchQualifiedMembers(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.pool.members.failed", "pool_distribution", err)
		return err
	}
	if len(members) == 0 {
		// The period stays unclaimed so a later run can pay it once
		// somebody qualifies.
		s.logger(ctx).Info("no qualifying members for point pool",
			zap.Int("month", pool.Month),
			zap.Int("year", pool.Year),
		)
		return nil
	}

	// The share is split evenly; remainders stay in the pool row.
	perMember := float64(int64(share / float64(len(members))))

	claimed, err := s.poolRepo.MarkDistributed(ctx, s.db, pool.Month, pool.Year, now)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.pool.claim.failed", "pool_distribution", err)
		return err
	}
	if claimed == 0 {
		// Another replica owns this period.
		return nil
	}

	var jobErr error
	for _, member := range members {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		err := s.walletSvc.Credit(ctx, walletdomain.CreditRequest{
			MemberID: member.MemberID,
			Points:   perMember,
			Type:     walletdomain.TransactionTypePool,
			Note:     fmt.Sprintf("pool %d/%d", pool.Month, pool.Year),
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.pool.credit.failed", "pool_distribution", err,
				zap.String("member_id", member.MemberID),
			)
			continue
		}
		run.AddProcessed(1)
	}

	obsmetrics.Scheduler().AddBatchProcessed("pool_distribution", "members", run.processedCount)
	s.logger(ctx).Info("point pool distributed",
		zap.Int("month", pool.Month),
		zap.Int("year", pool.Year),
		zap.Float64("share", share),
		zap.Float64("per_member", perMember),
		zap.Int("members", run.processedCount),
	)
	return jobErr
}

// fetchQualifiedMembers returns the active members eligible for a pool
// share: anyone in a club tier, or holding the top rank.
func (s *Scheduler) fetchQualifiedMembers(ctx context.Context) ([]memberdomain.Member, error) {
	plan := s.plans.Current()

	clubs := make([]string, 0, len(plan.Clubs))
	for _, tier := range plan.Clubs {
		clubs = append(clubs, tier.Club)
	}
	topRank := ""
	if len(plan.Ranks) > 0 {
		topRank = plan.Ranks[len(plan.Ranks)-1].Rank
	}

	query := s.db.WithContext(ctx).
		Model(&memberdomain.Member{}).
		Where("is_active = ?", true)
	switch {
	case len(clubs) > 0 && topRank != "":
		query = query.Where("club IN ? OR rank = ?", clubs, topRank)
	case len(clubs) > 0:
		query = query.Where("club IN ?", clubs)
	case topRank != "":
		query = query.Where("rank = ?", topRank)
	default:
		return nil, nil
	}

	var members []memberdomain.Member
	if err := query.Order("member_id asc").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
