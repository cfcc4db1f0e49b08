package commission

import (
	"context"

	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Plans      *config.PlanConfigHolder
	MemberRepo memberdomain.Repository
	WalletSvc  walletdomain.Service
}

// Distributor fans a purchase's points out as commissions: the buyer keeps
// the full amount, the referrer earns the direct rate, and every tree
// ancestor earns the level rate.
type Distributor struct {
	db         *gorm.DB
	log        *zap.Logger
	plans      *config.PlanConfigHolder
	memberRepo memberdomain.Repository
	walletSvc  walletdomain.Service
}

func NewDistributor(p Params) *Distributor {
	return &Distributor{
		db:         p.DB,
		log:        p.Log.Named("commission.distributor"),
		plans:      p.Plans,
		memberRepo: p.MemberRepo,
		walletSvc:  p.WalletSvc,
	}
}

// Distribute credits every party owed a share of the purchase. Credits are
// independent: a failed or skipped credit is logged and the rest proceed.
// Each credit commits in its own transaction through the wallet service.
func (d *Distributor) Distribute(ctx context.Context, memberID string, points float64, referrerID string, orderID string) error {
	if points <= 0 {
		return nil
	}
	plan := d.plans.Current()

	d.credit(ctx, walletdomain.CreditRequest{
		MemberID:       memberID,
		Points:         points,
		Type:           walletdomain.TransactionTypePersonal,
		SourceMemberID: memberID,
		OrderID:        orderID,
	})

	if referrerID != "" && referrerID != memberID {
		d.credit(ctx, walletdomain.CreditRequest{
			MemberID:       referrerID,
			Points:         points * plan.DirectRate,
			Type:           walletdomain.TransactionTypeDirect,
			SourceMemberID: memberID,
			OrderID:        orderID,
		})
	}

	levelShare := points * plan.LevelRate
	member, err := d.memberRepo.FindByMemberID(ctx, d.db, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return memberdomain.ErrNotFound
	}

	parentID := member.ParentID
	for parentID != "" {
		ancestor, err := d.memberRepo.FindByMemberID(ctx, d.db, parentID)
		if err != nil {
			d.log.Warn("level commission halted",
				zap.String("ancestor_id", parentID),
				zap.Error(err),
			)
			return nil
		}
		if ancestor == nil {
			return nil
		}

		d.credit(ctx, walletdomain.CreditRequest{
			MemberID:       ancestor.MemberID,
			Points:         levelShare,
			Type:           walletdomain.TransactionTypeLevel,
			SourceMemberID: memberID,
			OrderID:        orderID,
		})

		parentID = ancestor.ParentID
	}

	return nil
}

func (d *Distributor) credit(ctx context.Context, req walletdomain.CreditRequest) {
	if err := d.walletSvc.Credit(ctx, req); err != nil {
		// Deliberate partial tolerance: one bad wallet must not void the
		// other participants' commissions.
		d.log.Warn("commission credit failed",
			zap.String("member_id", req.MemberID),
			zap.String("type", string(req.Type)),
			zap.Float64("points", req.Points),
			zap.Error(err),
		)
	}
}
