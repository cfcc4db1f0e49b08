package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByPeriod(ctx context.Context, db *gorm.DB, month, year int) (*GlobalPointPool, error)
	Upsert(ctx context.Context, db *gorm.DB, pool *GlobalPointPool) error
	AddPoints(ctx context.Context, db *gorm.DB, month, year int, points float64, at time.Time) (int64, error)
	MarkDistributed(ctx context.Context, db *gorm.DB, month, year int, at time.Time) (int64, error)
}

type Service interface {
	// AccrueTx bumps the pool for the month containing at, inside the
	// caller's transaction.
	AccrueTx(ctx context.Context, tx *gorm.DB, points float64, at time.Time) error
	GetPeriod(ctx context.Context, month, year int) (GlobalPointPool, error)
}

var ErrPoolNotFound = errors.New("point_pool_not_found")
