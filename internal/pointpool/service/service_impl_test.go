package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trinetlabs/trinet/internal/pointpool/domain"
	"github.com/trinetlabs/trinet/internal/pointpool/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newPoolService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.GlobalPointPool{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestAccrueCreatesThenAccumulates(t *testing.T) {
	svc, db := newPoolService(t)
	ctx := context.Background()
	at := time.Date(2026, time.July, 3, 10, 0, 0, 0, time.UTC)

	require.NoError(t, svc.AccrueTx(ctx, db, 100, at))
	require.NoError(t, svc.AccrueTx(ctx, db, 50, at))

	pool, err := svc.GetPeriod(ctx, 7, 2026)
	require.NoError(t, err)
	assert.Equal(t, float64(150), pool.TotalPoints)
	assert.False(t, pool.Distributed)
}

func TestAccrueSplitsOnMonthBoundary(t *testing.T) {
	svc, db := newPoolService(t)
	ctx := context.Background()

	require.NoError(t, svc.AccrueTx(ctx, db, 100, time.Date(2026, time.July, 31, 23, 59, 0, 0, time.UTC)))
	require.NoError(t, svc.AccrueTx(ctx, db, 40, time.Date(2026, time.August, 1, 0, 1, 0, 0, time.UTC)))

	july, err := svc.GetPeriod(ctx, 7, 2026)
	require.NoError(t, err)
	assert.Equal(t, float64(100), july.TotalPoints)

	august, err := svc.GetPeriod(ctx, 8, 2026)
	require.NoError(t, err)
	assert.Equal(t, float64(40), august.TotalPoints)
}

func TestAccrueIgnoresNonPositivePoints(t *testing.T) {
	svc, db := newPoolService(t)
	ctx := context.Background()

	require.NoError(t, svc.AccrueTx(ctx, db, 0, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)))

	_, err := svc.GetPeriod(ctx, 7, 2026)
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestMarkDistributedClaimsOnce(t *testing.T) {
	svc, db := newPoolService(t)
	ctx := context.Background()
	at := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)
	repo := repository.Provide()

	require.NoError(t, svc.AccrueTx(ctx, db, 100, at))

	affected, err := repo.MarkDistributed(ctx, db, 7, 2026, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.MarkDistributed(ctx, db, 7, 2026, at)
	require.NoError(t, err)
	assert.Zero(t, affected)
}
