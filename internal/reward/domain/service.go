package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type CreateThresholdRequest struct {
	Points float64
	Reward string
}

type Repository interface {
	InsertThreshold(ctx context.Context, db *gorm.DB, threshold *RewardThreshold) error
	ListThresholds(ctx context.Context, db *gorm.DB) ([]*RewardThreshold, error)
	InsertReward(ctx context.Context, db *gorm.DB, reward *Reward) (int64, error)
	ListByMember(ctx context.Context, db *gorm.DB, memberID string) ([]*Reward, error)
}

type Service interface {
	CreateThreshold(context.Context, CreateThresholdRequest) (RewardThreshold, error)
	ListThresholds(ctx context.Context) ([]RewardThreshold, error)
	// EnsureForBalanceTx awards every threshold the lifetime balance has
	// crossed, inside the caller's transaction. Already-held rewards are
	// skipped.
	EnsureForBalanceTx(ctx context.Context, tx *gorm.DB, memberID string, lifetimeBalance float64) error
	ListByMember(ctx context.Context, memberID string) ([]Reward, error)
}

var (
	ErrInvalidPoints   = errors.New("invalid_points")
	ErrInvalidReward   = errors.New("invalid_reward")
	ErrThresholdExists = errors.New("threshold_exists")
)
