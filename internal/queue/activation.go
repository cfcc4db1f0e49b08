package queue

import (
	"context"
	"time"

	"github.com/trinetlabs/trinet/internal/commission"
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/internal/ratelimit"
	"github.com/trinetlabs/trinet/internal/tree"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	treeLockKey  = "trinet:tree:lock"
	lockPollStep = 50 * time.Millisecond
)

type ActivationParams struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Plans       *config.PlanConfigHolder
	Tree        *tree.Engine
	MemberRepo  memberdomain.Repository
	MemberSvc   memberdomain.Service
	Distributor *commission.Distributor
	Locker      *ratelimit.Locker `optional:"true"`
}

// ActivationProcessor places a newly paying member into the tree and pays
// the commissions their purchase earned. Placement and ancestor bookkeeping
// run in one transaction; commissions follow after commit, each in its own.
type ActivationProcessor struct {
	db          *gorm.DB
	log         *zap.Logger
	plans       *config.PlanConfigHolder
	tree        *tree.Engine
	memberRepo  memberdomain.Repository
	memberSvc   memberdomain.Service
	distributor *commission.Distributor
	locker      *ratelimit.Locker
	lockTTL     time.Duration
}

func NewActivationProcessor(p ActivationParams) *ActivationProcessor {
	ttl := p.Cfg.QueueJobTimeout
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ActivationProcessor{
		db:          p.DB,
		log:         p.Log.Named("queue.activation"),
		plans:       p.Plans,
		tree:        p.Tree,
		memberRepo:  p.MemberRepo,
		memberSvc:   p.MemberSvc,
		distributor: p.Distributor,
		locker:      p.Locker,
		lockTTL:     ttl,
	}
}

func (p *ActivationProcessor) Process(ctx context.Context, job Job) error {
	release, err := p.acquireTreeLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return p.place(ctx, tx, job)
	}); err != nil {
		return err
	}

	if job.Points > 0 {
		if err := p.distributor.Distribute(ctx, job.MemberID, job.Points, job.ReferrerID, job.OrderID); err != nil {
			p.log.Warn("commission distribution failed",
				zap.String("member_id", job.MemberID),
				zap.Error(err),
			)
		}
	}

	if job.ReferrerID != "" {
		if _, err := p.memberSvc.RecomputeRank(ctx, job.ReferrerID); err != nil {
			p.log.Warn("rank recompute failed",
				zap.String("member_id", job.ReferrerID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// place attaches the member under the best open slot, links the referrer,
// then refreshes counters and levels along the ancestor chain. A job without
// a sponsor only activates the member. Re-running after a crash is safe: an
// already placed member is a no-op.
func (p *ActivationProcessor) place(ctx context.Context, tx *gorm.DB, job Job) error {
	member, err := p.memberRepo.FindByMemberID(ctx, tx, job.MemberID)
	if err != nil {
		return err
	}
	if member == nil {
		return memberdomain.ErrNotFound
	}
	if member.ParentID != "" || member.IsRoot {
		return nil
	}
	if job.SponsorID == "" {
		// Nobody to place under: the member stands outside the tree and
		// only the activation itself applies.
		if member.IsActive {
			return nil
		}
		return p.memberRepo.UpdateFields(ctx, tx, member.MemberID, map[string]any{
			"is_active": true,
		})
	}

	slot, err := p.tree.FindAvailableSlot(ctx, tx, job.SponsorID)
	if err != nil {
		return err
	}

	children := append(append(datatypes.JSONSlice[string]{}, slot.Children...), member.MemberID)
	if err := p.memberRepo.UpdateFields(ctx, tx, slot.MemberID, map[string]any{
		"children":    children,
		"child_count": len(children),
		"is_complete": len(children) >= p.plans.Current().MaxChildren,
	}); err != nil {
		return err
	}

	if err := p.memberRepo.UpdateFields(ctx, tx, member.MemberID, map[string]any{
		"parent_id": slot.MemberID,
		"is_active": true,
	}); err != nil {
		return err
	}

	if err := p.linkReferrer(ctx, tx, job.ReferrerID, member.MemberID); err != nil {
		return err
	}

	if err := p.tree.RefreshDescendantCounts(ctx, tx, member.MemberID); err != nil {
		return err
	}
	return p.tree.Propagate(ctx, tx, member.MemberID)
}

func (p *ActivationProcessor) linkReferrer(ctx context.Context, tx *gorm.DB, referrerID, memberID string) error {
	if referrerID == "" {
		return nil
	}
	referrer, err := p.memberRepo.FindByMemberID(ctx, tx, referrerID)
	if err != nil {
		return err
	}
	if referrer == nil {
		return nil
	}
	for _, id := range referrer.ReferredCustomers {
		if id == memberID {
			return nil
		}
	}

	referred := append(append(datatypes.JSONSlice[string]{}, referrer.ReferredCustomers...), memberID)
	return p.memberRepo.UpdateFields(ctx, tx, referrer.MemberID, map[string]any{
		"referred_customers": referred,
		"referred_count":     len(referred),
	})
}

// acquireTreeLock serializes tree mutations across replicas when redis is
// configured. A single-process deployment runs lock-free: the queue's worker
// pool already serializes placement when QUEUE_WORKERS is 1.
func (p *ActivationProcessor) acquireTreeLock(ctx context.Context) (func(), error) {
	if p.locker == nil {
		return func() {}, nil
	}

	for {
		token, ok, err := p.locker.TryLock(ctx, treeLockKey, p.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := p.locker.Release(context.Background(), treeLockKey, token); err != nil {
					p.log.Warn("tree lock release failed", zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollStep):
		}
	}
}
