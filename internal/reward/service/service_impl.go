package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/clock"
	"github.com/trinetlabs/trinet/internal/reward/domain"
	"github.com/trinetlabs/trinet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reward.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateThreshold(ctx context.Context, req domain.CreateThresholdRequest) (domain.RewardThreshold, error) {
	if req.Points <= 0 {
		return domain.RewardThreshold{}, domain.ErrInvalidPoints
	}
	name := strings.TrimSpace(req.Reward)
	if name == "" {
		return domain.RewardThreshold{}, domain.ErrInvalidReward
	}

	threshold := domain.RewardThreshold{
		ID:        s.genID.Generate(),
		Points:    req.Points,
		Reward:    name,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertThreshold(ctx, s.db, &threshold); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.RewardThreshold{}, domain.ErrThresholdExists
		}
		return domain.RewardThreshold{}, err
	}
	return threshold, nil
}

func (s *Service) ListThresholds(ctx context.Context) ([]domain.RewardThreshold, error) {
	items, err := s.repo.ListThresholds(ctx, s.db)
	if err != nil {
		return nil, err
	}
	thresholds := make([]domain.RewardThreshold, 0, len(items))
	for _, item := range items {
		thresholds = append(thresholds, *item)
	}
	return thresholds, nil
}

func (s *Service) EnsureForBalanceTx(ctx context.Context, tx *gorm.DB, memberID string, lifetimeBalance float64) error {
	thresholds, err := s.repo.ListThresholds(ctx, tx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, threshold := range thresholds {
		if lifetimeBalance < threshold.Points {
			break
		}
		affected, err := s.repo.InsertReward(ctx, tx, &domain.Reward{
			ID:              s.genID.Generate(),
			MemberID:        memberID,
			ThresholdPoints: threshold.Points,
			Reward:          threshold.Reward,
			AwardedAt:       now,
		})
		if err != nil {
			return err
		}
		if affected > 0 {
			s.log.Info("reward granted",
				zap.String("member_id", memberID),
				zap.Float64("threshold_points", threshold.Points),
				zap.String("reward", threshold.Reward),
			)
		}
	}
	return nil
}

func (s *Service) ListByMember(ctx context.Context, memberID string) ([]domain.Reward, error) {
	items, err := s.repo.ListByMember(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return nil, err
	}
	rewards := make([]domain.Reward, 0, len(items))
	for _, item := range items {
		rewards = append(rewards, *item)
	}
	return rewards, nil
}
