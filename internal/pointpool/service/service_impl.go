package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/pointpool/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("pointpool.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) AccrueTx(ctx context.Context, tx *gorm.DB, points float64, at time.Time) error {
	if points <= 0 {
		return nil
	}

	month := int(at.Month())
	year := at.Year()

	affected, err := s.repo.AddPoints(ctx, tx, month, year, points, at)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	pool := domain.GlobalPointPool{
		ID:        s.genID.Generate(),
		Month:     month,
		Year:      year,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.repo.Upsert(ctx, tx, &pool); err != nil {
		return err
	}

	// A concurrent insert may have won the upsert; the add below lands on
	// whichever row exists.
	_, err = s.repo.AddPoints(ctx, tx, month, year, points, at)
	return err
}

func (s *Service) GetPeriod(ctx context.Context, month, year int) (domain.GlobalPointPool, error) {
	pool, err := s.repo.FindByPeriod(ctx, s.db, month, year)
	if err != nil {
		return domain.GlobalPointPool{}, err
	}
	if pool == nil {
		return domain.GlobalPointPool{}, domain.ErrPoolNotFound
	}
	return *pool, nil
}
