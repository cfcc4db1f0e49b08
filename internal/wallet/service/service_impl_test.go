package service

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
	"github.com/trinetlabs/trinet/internal/wallet/domain"
	"github.com/trinetlabs/trinet/internal/wallet/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type walletFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	plans      *config.PlanConfigHolder
	memberRepo memberdomain.Repository
	svc        domain.Service
}

func newWalletFixture(t *testing.T) *walletFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&domain.Wallet{},
		&domain.WalletTransaction{},
		&domain.Withdrawal{},
		&pooldomain.GlobalPointPool{},
		&rewarddomain.RewardThreshold{},
		&rewarddomain.Reward{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	plans := &config.PlanConfigHolder{}
	plans.Store(config.DefaultPlanConfig())

	memberRepo := memberrepository.Provide()
	poolSvc := poolservice.New(poolservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  poolrepository.Provide(),
	})
	rewardSvc := rewardservice.New(rewardservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  rewardrepository.Provide(),
	})

	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Plans:      plans,
		Repo:       repository.Provide(),
		MemberRepo: memberRepo,
		PoolSvc:    poolSvc,
		RewardSvc:  rewardSvc,
	})

	return &walletFixture{
		db:         db,
		node:       node,
		clock:      fake,
		plans:      plans,
		memberRepo: memberRepo,
		svc:        svc,
	}
}

func (f *walletFixture) seedMember(t *testing.T, memberID string, active bool, referredCount int) {
	t.Helper()
	err := f.memberRepo.Insert(context.Background(), f.db, &memberdomain.Member{
		ID:            f.node.Generate(),
		MemberID:      memberID,
		Name:          "Member " + memberID,
		Email:         memberID + "@example.com",
		IsActive:      active,
		ReferredCount: referredCount,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	})
	require.NoError(t, err)
}

func TestCreditUpdatesBucketsAndPool(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", true, 0)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID:       "AAAA000001",
		Points:         100,
		Type:           domain.TransactionTypePersonal,
		SourceMemberID: "AAAA000001",
	}))
	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID:       "AAAA000001",
		Points:         50,
		Type:           domain.TransactionTypeLevel,
		SourceMemberID: "BBBB000001",
	}))

	view, err := f.svc.GetByMemberID(ctx, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, float64(150), view.CurrentBalance)
	assert.Equal(t, float64(100), view.CurrentMonthlyBalance)
	assert.Equal(t, float64(100), view.DirectIncomeCurrent)
	assert.Equal(t, float64(50), view.LevelIncomeCurrent)
	assert.Equal(t, float64(50), view.LevelIncomeMonthly)

	// Every credit accrues into the month's pool.
	var pool pooldomain.GlobalPointPool
	require.NoError(t, f.db.Where("month = ? AND year = ?", 3, 2026).First(&pool).Error)
	assert.Equal(t, float64(150), pool.TotalPoints)

	txns, err := f.svc.ListTransactions(ctx, "AAAA000001", 10)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestCreditSkipsInactiveAndMissingMembers(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", false, 0)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   100,
		Type:     domain.TransactionTypePersonal,
	}))
	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "ZZZZ999999",
		Points:   100,
		Type:     domain.TransactionTypeDirect,
	}))

	var wallets int64
	require.NoError(t, f.db.Model(&domain.Wallet{}).Count(&wallets).Error)
	assert.Zero(t, wallets)
}

func TestCreditRatchetsClubUp(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", true, 0)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   6_000,
		Type:     domain.TransactionTypePersonal,
	}))
	member, err := f.memberRepo.FindByMemberID(ctx, f.db, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, "Silver", member.Club)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   5_000,
		Type:     domain.TransactionTypePersonal,
	}))
	member, err = f.memberRepo.FindByMemberID(ctx, f.db, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, "Gold", member.Club)
}

func TestCreditGrantsRewardOncePerThreshold(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", true, 0)

	require.NoError(t, f.db.Create(&rewarddomain.RewardThreshold{
		ID:     f.node.Generate(),
		Points: 1_000,
		Reward: "Smartwatch",
	}).Error)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   1_200,
		Type:     domain.TransactionTypePersonal,
	}))
	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   300,
		Type:     domain.TransactionTypePersonal,
	}))

	var rewards int64
	require.NoError(t, f.db.Model(&rewarddomain.Reward{}).
		Where("member_id = ?", "AAAA000001").Count(&rewards).Error)
	assert.Equal(t, int64(1), rewards)
}

func TestWithdrawRequestEligibility(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()

	// Too few referrals.
	f.seedMember(t, "AAAA000001", true, 2)
	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   4_500,
		Type:     domain.TransactionTypePersonal,
	}))
	_, err := f.svc.WithdrawRequest(ctx, "AAAA000001", 100)
	assert.ErrorIs(t, err, domain.ErrNotEligible)

	// Eligible member, amount above withdrawable.
	f.seedMember(t, "BBBB000001", true, 5)
	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "BBBB000001",
		Points:   4_500,
		Type:     domain.TransactionTypePersonal,
	}))
	_, err = f.svc.WithdrawRequest(ctx, "BBBB000001", 811)
	assert.ErrorIs(t, err, domain.ErrExceedsWithdrawable)

	withdrawal, err := f.svc.WithdrawRequest(ctx, "BBBB000001", 810)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, withdrawal.Status)
	assert.Equal(t, float64(4_500), withdrawal.Points)
	assert.Equal(t, float64(90), withdrawal.Charge)
}

func TestWithdrawLifecycle(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", true, 5)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   4_500,
		Type:     domain.TransactionTypePersonal,
	}))

	withdrawal, err := f.svc.WithdrawRequest(ctx, "AAAA000001", 810)
	require.NoError(t, err)

	processed, err := f.svc.Withdraw(ctx, withdrawal.ID, "TX-123")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusProcessed, processed.Status)

	view, err := f.svc.GetByMemberID(ctx, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, float64(0), view.CurrentBalance)

	// Already processed: a second attempt is refused.
	_, err = f.svc.Withdraw(ctx, withdrawal.ID, "TX-124")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestRejectWithdrawalLeavesBalance(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", true, 5)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   4_500,
		Type:     domain.TransactionTypePersonal,
	}))

	withdrawal, err := f.svc.WithdrawRequest(ctx, "AAAA000001", 100)
	require.NoError(t, err)

	rejected, err := f.svc.RejectWithdrawal(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, rejected.Status)

	view, err := f.svc.GetByMemberID(ctx, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, float64(4_500), view.CurrentBalance)
}

func TestResetMonthlyZeroesMonthlyBuckets(t *testing.T) {
	f := newWalletFixture(t)
	ctx := context.Background()
	f.seedMember(t, "AAAA000001", true, 0)

	require.NoError(t, f.svc.Credit(ctx, domain.CreditRequest{
		MemberID: "AAAA000001",
		Points:   1_000,
		Type:     domain.TransactionTypePersonal,
	}))

	reset, err := f.svc.ResetMonthly(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	view, err := f.svc.GetByMemberID(ctx, "AAAA000001")
	require.NoError(t, err)
	assert.Equal(t, float64(1_000), view.CurrentBalance)
	assert.Equal(t, float64(0), view.CurrentMonthlyBalance)
	assert.Equal(t, float64(0), view.DirectIncomeMonthly)

	// Same month again: nothing left to reset.
	reset, err = f.svc.ResetMonthly(ctx)
	require.NoError(t, err)
	assert.Zero(t, reset)
}
