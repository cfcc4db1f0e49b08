package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trinetlabs/trinet/internal/clock"
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	memberrepository "github.com/trinetlabs/trinet/internal/member/repository"
	pooldomain "github.com/trinetlabs/trinet/internal/pointpool/domain"
	poolrepository "github.com/trinetlabs/trinet/internal/pointpool/repository"
	poolservice "github.com/trinetlabs/trinet/internal/pointpool/service"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
	rewardrepository "github.com/trinetlabs/trinet/internal/reward/repository"
	rewardservice "github.com/trinetlabs/trinet/internal/reward/service"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
	walletrepository "github.com/trinetlabs/trinet/internal/wallet/repository"
	walletservice "github.com/trinetlabs/trinet/internal/wallet/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type schedulerFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	memberRepo memberdomain.Repository
	poolRepo   pooldomain.Repository
	walletSvc  walletdomain.Service
	scheduler  *Scheduler
}

func newSchedulerFixture(t *testing.T, now time.Time) *schedulerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&walletdomain.Wallet{},
		&walletdomain.WalletTransaction{},
		&walletdomain.Withdrawal{},
		&pooldomain.GlobalPointPool{},
		&rewarddomain.RewardThreshold{},
		&rewarddomain.Reward{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(now)
	log := zap.NewNop()

	plans := &config.PlanConfigHolder{}
	plans.Store(config.DefaultPlanConfig())

	memberRepo := memberrepository.Provide()
	poolRepo := poolrepository.Provide()
	walletSvc := walletservice.New(walletservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Plans:      plans,
		Repo:       walletrepository.Provide(),
		MemberRepo: memberRepo,
		PoolSvc: poolservice.New(poolservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Repo:  poolrepository.Provide(),
		}),
		RewardSvc: rewardservice.New(rewardservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Clock: fake,
			Repo:  rewardrepository.Provide(),
		}),
	})

	sched, err := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		Plans:     plans,
		PoolRepo:  poolRepo,
		WalletSvc: walletSvc,
	})
	require.NoError(t, err)

	return &schedulerFixture{
		db:         db,
		node:       node,
		clock:      fake,
		memberRepo: memberRepo,
		poolRepo:   poolRepo,
		walletSvc:  walletSvc,
		scheduler:  sched,
	}
}

func (f *schedulerFixture) seedMember(t *testing.T, memberID, club, rank string) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.memberRepo.Insert(context.Background(), f.db, &memberdomain.Member{
		ID:        f.node.Generate(),
		MemberID:  memberID,
		Name:      memberID,
		Email:     memberID + "@example.com",
		Club:      club,
		Rank:      rank,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (f *schedulerFixture) seedPool(t *testing.T, month, year int, points float64) {
	t.Helper()
	require.NoError(t, f.db.Create(&pooldomain.GlobalPointPool{
		ID:          f.node.Generate(),
		Month:       month,
		Year:        year,
		TotalPoints: points,
	}).Error)
}

func (f *schedulerFixture) balance(t *testing.T, memberID string) float64 {
	t.Helper()
	view, err := f.walletSvc.GetByMemberID(context.Background(), memberID)
	require.NoError(t, err)
	return view.CurrentBalance
}

func TestMonthlyResetJobOnMonthTurn(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.July, 20, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedMember(t, "AAAA000001", "", "")

	// A fresh wallet has no reset marker; the first run stamps it.
	require.NoError(t, f.walletSvc.Credit(ctx, walletdomain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   1_000,
		Type:     walletdomain.TransactionTypePersonal,
	}))
	require.NoError(t, f.scheduler.MonthlyResetJob(ctx))

	require.NoError(t, f.walletSvc.Credit(ctx, walletdomain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   500,
		Type:     walletdomain.TransactionTypePersonal,
	}))

	// Same month: the stamped wallet is left alone.
	require.NoError(t, f.scheduler.MonthlyResetJob(ctx))
	view, err := f.walletSvc.GetByMemberID(ctx, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, float64(500), view.CurrentMonthlyBalance)

	// Month turns: monthly buckets go back to zero, lifetime balance stays.
	f.clock.Advance(20 * 24 * time.Hour)
	require.NoError(t, f.scheduler.MonthlyResetJob(ctx))

	view, err = f.walletSvc.GetByMemberID(ctx, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, float64(0), view.CurrentMonthlyBalance)
	assert.Equal(t, float64(1_500), view.CurrentBalance)
}

func TestPoolDistributionWaitsForTheFifth(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedMember(t, "AAAA000001", "Silver", "")
	f.seedPool(t, 7, 2026, 1_000)

	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))

	pool, err := f.poolRepo.FindByPeriod(ctx, f.db, 7, 2026)
	require.NoError(t, err)
	assert.False(t, pool.Distributed)
}

func TestPoolDistributionSplitsShareAcrossMembers(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.August, 5, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedMember(t, "CLUB000001", "Silver", "")
	f.seedMember(t, "CROWN00001", "", "Crown")
	f.seedMember(t, "PLAIN00001", "", "")
	f.seedPool(t, 7, 2026, 1_000)

	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))

	// floor(1000 * 0.01) = 10 points, split over two qualifying members.
	assert.Equal(t, float64(5), f.balance(t, "CLUB000001"))
	assert.Equal(t, float64(5), f.balance(t, "CROWN00001"))

	_, err := f.walletSvc.GetByMemberID(ctx, "PLAIN00001")
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)

	pool, err := f.poolRepo.FindByPeriod(ctx, f.db, 7, 2026)
	require.NoError(t, err)
	assert.True(t, pool.Distributed)

	// A second run finds the period claimed and pays nothing more.
	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))
	assert.Equal(t, float64(5), f.balance(t, "CLUB000001"))
	assert.Equal(t, float64(5), f.balance(t, "CROWN00001"))
}

func TestPoolDistributionLeavesPeriodUnclaimedWithoutMembers(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.August, 5, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedPool(t, 7, 2026, 1_000)

	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))

	pool, err := f.poolRepo.FindByPeriod(ctx, f.db, 7, 2026)
	require.NoError(t, err)
	assert.False(t, pool.Distributed)

	// Once somebody qualifies a later run pays the full period out.
	f.seedMember(t, "CLUB000001", "Silver", "")
	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))
	assert.Equal(t, float64(10), f.balance(t, "CLUB000001"))
}

func TestPoolDistributionSkipsEmptyPool(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.August, 5, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedMember(t, "CLUB000001", "Silver", "")

	// No pool row for July at all.
	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))
	_, err := f.walletSvc.GetByMemberID(ctx, "CLUB000001")
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)
}

func TestPoolDistributionClaimsTinyPoolWithoutPaying(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.August, 5, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedMember(t, "CLUB000001", "Silver", "")
	f.seedPool(t, 7, 2026, 50)

	// floor(50 * 0.01) = 0: the period is closed with no payout.
	require.NoError(t, f.scheduler.PoolDistributionJob(ctx))

	pool, err := f.poolRepo.FindByPeriod(ctx, f.db, 7, 2026)
	require.NoError(t, err)
	assert.True(t, pool.Distributed)

	_, err = f.walletSvc.GetByMemberID(ctx, "CLUB000001")
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)
}

func TestRunOnceCoversBothJobs(t *testing.T) {
	f := newSchedulerFixture(t, time.Date(2026, time.August, 6, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.seedMember(t, "CLUB000001", "Silver", "")
	f.seedPool(t, 7, 2026, 1_000)

	require.NoError(t, f.scheduler.RunOnce(ctx))
	assert.Equal(t, float64(10), f.balance(t, "CLUB000001"))
}
