package repository

import (
	"context"

	"github.com/trinetlabs/trinet/internal/reward/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertThreshold(ctx context.Context, db *gorm.DB, threshold *domain.RewardThreshold) error {
	return db.WithContext(ctx).Create(threshold).Error
}

func (r *repo) ListThresholds(ctx context.Context, db *gorm.DB) ([]*domain.RewardThreshold, error) {
	var thresholds []*domain.RewardThreshold
	err := db.WithContext(ctx).
		Order("points asc").
		Find(&thresholds).Error
	if err != nil {
		return nil, err
	}
	return thresholds, nil
}

// InsertReward is a no-op when the member already holds the threshold.
func (r *repo) InsertReward(ctx context.Context, db *gorm.DB, reward *domain.Reward) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO rewards (id, member_id, threshold_points, reward, awarded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (member_id, threshold_points) DO NOTHING`,
		reward.ID,
		reward.MemberID,
		reward.ThresholdPoints,
		reward.Reward,
		reward.AwardedAt,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListByMember(ctx context.Context, db *gorm.DB, memberID string) ([]*domain.Reward, error) {
	var rewards []*domain.Reward
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("threshold_points asc").
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}
	return rewards, nil
}
