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
	"github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/internal/member/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type memberFixture struct {
	db   *gorm.DB
	repo domain.Repository
	svc  domain.Service
}

func newMemberFixture(t *testing.T) *memberFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Member{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	plans := &config.PlanConfigHolder{}
	plans.Store(config.DefaultPlanConfig())

	repo := repository.Provide()
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)),
		Plans: plans,
		Repo:  repo,
	})

	return &memberFixture{db: db, repo: repo, svc: svc}
}

func TestRegisterFirstMemberBecomesRoot(t *testing.T) {
	f := newMemberFixture(t)

	member, err := f.svc.Register(context.Background(), domain.RegisterMemberRequest{
		Name:  "Root Member",
		Email: "root@example.com",
	})
	require.NoError(t, err)
	assert.True(t, member.IsRoot)
	assert.True(t, member.IsActive)
	assert.Len(t, member.MemberID, 10)
}

func TestRegisterReferredMemberStartsInactive(t *testing.T) {
	f := newMemberFixture(t)

	root, err := f.svc.Register(context.Background(), domain.RegisterMemberRequest{
		Name:  "Root Member",
		Email: "root@example.com",
	})
	require.NoError(t, err)

	member, err := f.svc.Register(context.Background(), domain.RegisterMemberRequest{
		Name:       "Referred Member",
		Email:      "referred@example.com",
		ReferredBy: root.MemberID,
	})
	require.NoError(t, err)
	assert.False(t, member.IsRoot)
	assert.False(t, member.IsActive)
	assert.Equal(t, root.MemberID, member.ReferredBy)
	assert.Empty(t, member.ParentID)
}

func TestRegisterValidation(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, domain.RegisterMemberRequest{Email: "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Register(ctx, domain.RegisterMemberRequest{Name: "A", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:       "A",
		Email:      "a@example.com",
		ReferredBy: "UNKNOWN",
	})
	assert.ErrorIs(t, err, domain.ErrReferrerNotFound)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:  "A",
		Email: "same@example.com",
	})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:  "B",
		Email: "Same@Example.com",
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRecomputeRank(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	member, err := f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:  "Root Member",
		Email: "root@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.UpdateFields(ctx, f.db, member.MemberID, map[string]any{
		"referred_count": 12,
	}))

	ranked, err := f.svc.RecomputeRank(ctx, member.MemberID)
	require.NoError(t, err)
	assert.Equal(t, "Gold", ranked.Rank)
	assert.Equal(t, int64(100_000), ranked.MaxMonthlyWithdrawal)

	// Applying it again changes nothing.
	again, err := f.svc.RecomputeRank(ctx, member.MemberID)
	require.NoError(t, err)
	assert.Equal(t, ranked.Rank, again.Rank)
}

func TestRecomputeRankSkipsInactiveMembers(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	root, err := f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:  "Root Member",
		Email: "root@example.com",
	})
	require.NoError(t, err)

	member, err := f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:       "Pending Member",
		Email:      "pending@example.com",
		ReferredBy: root.MemberID,
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.UpdateFields(ctx, f.db, member.MemberID, map[string]any{
		"referred_count": 12,
	}))

	unranked, err := f.svc.RecomputeRank(ctx, member.MemberID)
	require.NoError(t, err)
	assert.Empty(t, unranked.Rank)
}

func TestDownlinePreservesPlacementOrder(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	root, err := f.svc.Register(ctx, domain.RegisterMemberRequest{
		Name:  "Root Member",
		Email: "root@example.com",
	})
	require.NoError(t, err)

	childIDs := make([]string, 0, 3)
	for _, email := range []string{"c1@example.com", "c2@example.com", "c3@example.com"} {
		child, err := f.svc.Register(ctx, domain.RegisterMemberRequest{
			Name:       "Child",
			Email:      email,
			ReferredBy: root.MemberID,
		})
		require.NoError(t, err)
		childIDs = append(childIDs, child.MemberID)
	}
	require.NoError(t, f.repo.UpdateFields(ctx, f.db, root.MemberID, map[string]any{
		"children": datatypes.JSONSlice[string](childIDs),
	}))

	resp, err := f.svc.Downline(ctx, root.MemberID)
	require.NoError(t, err)
	require.Len(t, resp.Children, 3)
	for i, child := range resp.Children {
		assert.Equal(t, childIDs[i], child.MemberID)
	}
}

func TestGetByMemberIDNotFound(t *testing.T) {
	f := newMemberFixture(t)

	_, err := f.svc.GetByMemberID(context.Background(), "MISSING")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
