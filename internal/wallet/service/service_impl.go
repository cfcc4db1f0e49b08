package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/clock"
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	pooldomain "github.com/trinetlabs/trinet/internal/pointpool/domain"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
	"github.com/trinetlabs/trinet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Plans      *config.PlanConfigHolder
	Repo       domain.Repository
	MemberRepo memberdomain.Repository
	PoolSvc    pooldomain.Service
	RewardSvc  rewarddomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	plans      *config.PlanConfigHolder
	repo       domain.Repository
	memberRepo memberdomain.Repository
	poolSvc    pooldomain.Service
	rewardSvc  rewarddomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("wallet.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		plans:      p.Plans,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		poolSvc:    p.PoolSvc,
		rewardSvc:  p.RewardSvc,
	}
}

func (s *Service) Credit(ctx context.Context, req domain.CreditRequest) error {
	if req.Points <= 0 {
		return nil
	}

	member, err := s.memberRepo.FindByMemberID(ctx, s.db, req.MemberID)
	if err != nil {
		return err
	}
	if member == nil || !member.IsActive {
		// Inactive recipients forfeit the credit; the rest of the
		// distribution proceeds.
		s.log.Debug("credit skipped",
			zap.String("member_id", req.MemberID),
			zap.String("type", string(req.Type)),
			zap.Float64("points", req.Points),
		)
		return nil
	}

	plan := s.plans.Current()
	now := s.clock.Now()
	delta := creditDelta(req.Type, req.Points)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.EnsureWallet(ctx, tx, &domain.Wallet{
			ID:        s.genID.Generate(),
			MemberID:  member.MemberID,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.repo.ApplyCredit(ctx, tx, member.MemberID, delta, now); err != nil {
			return err
		}

		if err := s.repo.InsertTransaction(ctx, tx, &domain.WalletTransaction{
			ID:             s.genID.Generate(),
			MemberID:       member.MemberID,
			Amount:         req.Points,
			Type:           req.Type,
			SourceMemberID: req.SourceMemberID,
			OrderID:        req.OrderID,
			Note:           req.Note,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		if err := s.poolSvc.AccrueTx(ctx, tx, req.Points, now); err != nil {
			return err
		}

		wallet, err := s.repo.FindByMemberID(ctx, tx, member.MemberID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return domain.ErrWalletNotFound
		}

		if err := s.rewardSvc.EnsureForBalanceTx(ctx, tx, member.MemberID, wallet.CurrentBalance); err != nil {
			return err
		}

		// Club tiers only ratchet up; nothing demotes a stored club.
		if club := plan.ClubFor(wallet.CurrentMonthlyBalance); club != "" && club != member.Club {
			if err := s.memberRepo.UpdateFields(ctx, tx, member.MemberID, map[string]any{
				"club":       club,
				"updated_at": now,
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Service) GetByMemberID(ctx context.Context, memberID string) (domain.WalletView, error) {
	wallet, err := s.repo.FindByMemberID(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return domain.WalletView{}, err
	}
	if wallet == nil {
		return domain.WalletView{}, domain.ErrWalletNotFound
	}

	plan := s.plans.Current()
	return domain.WalletView{
		Wallet: *wallet,
		WithdrawableAmount: domain.WithdrawableAmount(
			wallet.CurrentBalance,
			wallet.CurrentMonthlyBalance,
			plan.WithdrawalMonthlyFloor,
			plan.PointsPerRupee,
			plan.WithdrawalChargeRate,
		),
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, memberID string, limit int) ([]domain.WalletTransaction, error) {
	items, err := s.repo.ListTransactions(ctx, s.db, strings.TrimSpace(memberID), limit)
	if err != nil {
		return nil, err
	}
	txns := make([]domain.WalletTransaction, 0, len(items))
	for _, item := range items {
		txns = append(txns, *item)
	}
	return txns, nil
}

func (s *Service) WithdrawRequest(ctx context.Context, memberID string, amount int64) (domain.Withdrawal, error) {
	if amount <= 0 {
		return domain.Withdrawal{}, domain.ErrInvalidAmount
	}

	member, err := s.memberRepo.FindByMemberID(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if member == nil {
		return domain.Withdrawal{}, domain.ErrWalletMemberNotFound
	}

	wallet, err := s.repo.FindByMemberID(ctx, s.db, member.MemberID)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if wallet == nil {
		return domain.Withdrawal{}, domain.ErrWalletNotFound
	}

	plan := s.plans.Current()
	if member.ReferredCount < plan.MinReferredForWithdraw ||
		wallet.CurrentMonthlyBalance < plan.WithdrawalMonthlyFloor {
		return domain.Withdrawal{}, domain.ErrNotEligible
	}

	withdrawable := domain.WithdrawableAmount(
		wallet.CurrentBalance,
		wallet.CurrentMonthlyBalance,
		plan.WithdrawalMonthlyFloor,
		plan.PointsPerRupee,
		plan.WithdrawalChargeRate,
	)
	if amount > withdrawable {
		return domain.Withdrawal{}, domain.ErrExceedsWithdrawable
	}
	if member.MaxMonthlyWithdrawal > 0 && amount > member.MaxMonthlyWithdrawal {
		return domain.Withdrawal{}, domain.ErrExceedsRankLimit
	}

	points := domain.PointsForWithdrawal(amount, plan.PointsPerRupee, plan.WithdrawalChargeRate)
	now := s.clock.Now()
	withdrawal := domain.Withdrawal{
		ID:          s.genID.Generate(),
		MemberID:    member.MemberID,
		Points:      points,
		Amount:      amount,
		Charge:      points/plan.PointsPerRupee - float64(amount),
		Status:      domain.WithdrawalStatusPending,
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertWithdrawal(ctx, s.db, &withdrawal); err != nil {
		return domain.Withdrawal{}, err
	}

	s.log.Info("withdrawal requested",
		zap.String("member_id", withdrawal.MemberID),
		zap.Int64("amount", withdrawal.Amount),
		zap.Float64("points", withdrawal.Points),
	)

	return withdrawal, nil
}

func (s *Service) Withdraw(ctx context.Context, id snowflake.ID, reference string) (domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindWithdrawalByID(ctx, s.db, id)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if withdrawal == nil {
		return domain.Withdrawal{}, domain.ErrWithdrawalNotFound
	}
	if withdrawal.Status != domain.WithdrawalStatusPending {
		return domain.Withdrawal{}, domain.ErrInvalidStatus
	}

	plan := s.plans.Current()
	now := s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.repo.FindByMemberID(ctx, tx, withdrawal.MemberID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return domain.ErrWalletNotFound
		}

		withdrawable := domain.WithdrawableAmount(
			wallet.CurrentBalance,
			wallet.CurrentMonthlyBalance,
			plan.WithdrawalMonthlyFloor,
			plan.PointsPerRupee,
			plan.WithdrawalChargeRate,
		)
		if withdrawal.Amount > withdrawable {
			return domain.ErrExceedsWithdrawable
		}

		affected, err := s.repo.DebitBalance(ctx, tx, withdrawal.MemberID, withdrawal.Points, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInsufficientBalance
		}

		affected, err = s.repo.TransitionWithdrawal(ctx, tx, withdrawal.ID,
			domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessed, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidStatus
		}

		return s.repo.InsertTransaction(ctx, tx, &domain.WalletTransaction{
			ID:        s.genID.Generate(),
			MemberID:  withdrawal.MemberID,
			Amount:    -withdrawal.Points,
			Type:      domain.TransactionTypeWithdraw,
			Note:      strings.TrimSpace(reference),
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Withdrawal{}, err
	}

	withdrawal.Status = domain.WithdrawalStatusProcessed
	withdrawal.ProcessedAt = &now

	s.log.Info("withdrawal processed",
		zap.String("member_id", withdrawal.MemberID),
		zap.Int64("amount", withdrawal.Amount),
	)

	return *withdrawal, nil
}

func (s *Service) RejectWithdrawal(ctx context.Context, id snowflake.ID) (domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindWithdrawalByID(ctx, s.db, id)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if withdrawal == nil {
		return domain.Withdrawal{}, domain.ErrWithdrawalNotFound
	}

	now := s.clock.Now()
	affected, err := s.repo.TransitionWithdrawal(ctx, s.db, withdrawal.ID,
		domain.WithdrawalStatusPending, domain.WithdrawalStatusRejected, now)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if affected == 0 {
		return domain.Withdrawal{}, domain.ErrInvalidStatus
	}

	withdrawal.Status = domain.WithdrawalStatusRejected
	withdrawal.ProcessedAt = &now
	return *withdrawal, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, memberID string) ([]domain.Withdrawal, error) {
	items, err := s.repo.ListWithdrawals(ctx, s.db, strings.TrimSpace(memberID))
	if err != nil {
		return nil, err
	}
	withdrawals := make([]domain.Withdrawal, 0, len(items))
	for _, item := range items {
		withdrawals = append(withdrawals, *item)
	}
	return withdrawals, nil
}

func (s *Service) ResetMonthly(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.ResetMonthly(ctx, s.db, cutoff, now)
}

func creditDelta(kind domain.TransactionType, points float64) domain.CreditDelta {
	delta := domain.CreditDelta{Balance: points}
	switch kind {
	case domain.TransactionTypePersonal:
		// Only a member's own purchase counts toward the monthly balance
		// that drives club tiers and withdrawal eligibility.
		delta.MonthlyBalance = points
		delta.Direct = points
		delta.DirectMonthly = points
	case domain.TransactionTypeDirect, domain.TransactionTypePool:
		delta.Direct = points
		delta.DirectMonthly = points
	case domain.TransactionTypeLevel:
		delta.Level = points
		delta.LevelMonthly = points
	}
	return delta
}
