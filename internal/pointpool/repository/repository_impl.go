package repository

import (
	"context"
	"errors"
	"time"

	"github.com/trinetlabs/trinet/internal/pointpool/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByPeriod(ctx context.Context, db *gorm.DB, month, year int) (*domain.GlobalPointPool, error) {
	var pool domain.GlobalPointPool
	err := db.WithContext(ctx).
		Where("month = ? AND year = ?", month, year).
		First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, pool *domain.GlobalPointPool) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO global_point_pools (id, month, year, total_points, distributed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (month, year) DO NOTHING`,
		pool.ID,
		pool.Month,
		pool.Year,
		pool.TotalPoints,
		pool.Distributed,
		pool.CreatedAt,
		pool.UpdatedAt,
	).Error
}

func (r *repo) AddPoints(ctx context.Context, db *gorm.DB, month, year int, points float64, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE global_point_pools
		 SET total_points = total_points + ?, updated_at = ?
		 WHERE month = ? AND year = ?`,
		points,
		at,
		month,
		year,
	)
	return result.RowsAffected, result.Error
}

// MarkDistributed flips the distributed flag exactly once per period.
func (r *repo) MarkDistributed(ctx context.Context, db *gorm.DB, month, year int, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE global_point_pools
		 SET distributed = ?, distributed_at = ?, updated_at = ?
		 WHERE month = ? AND year = ? AND distributed = ?`,
		true,
		at,
		at,
		month,
		year,
		false,
	)
	return result.RowsAffected, result.Error
}
