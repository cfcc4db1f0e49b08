package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/clock"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/internal/order/domain"
	"github.com/trinetlabs/trinet/internal/queue"
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
	Repo       domain.Repository
	MemberRepo memberdomain.Repository
	Queue      *queue.Queue
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	memberRepo memberdomain.Repository
	queue      *queue.Queue
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		queue:      p.Queue,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if req.Amount <= 0 {
		return domain.Order{}, domain.ErrInvalidOrderAmount
	}

	memberID := strings.TrimSpace(req.MemberID)
	member, err := s.memberRepo.FindByMemberID(ctx, s.db, memberID)
	if err != nil {
		return domain.Order{}, err
	}
	if member == nil {
		return domain.Order{}, memberdomain.ErrNotFound
	}

	points := req.Points
	if points <= 0 {
		// One point per rupee spent unless the caller prices it explicitly.
		points = float64(req.Amount)
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:        s.genID.Generate(),
		OrderID:   fmt.Sprintf("ORD-%s", s.genID.Generate()),
		MemberID:  member.MemberID,
		Amount:    req.Amount,
		Points:    points,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("member_id", order.MemberID),
		zap.Int64("amount", order.Amount),
	)
	return order, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID string, limit int) ([]domain.Order, error) {
	orders, err := s.repo.ListByMember(ctx, s.db, memberID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		out = append(out, *order)
	}
	return out, nil
}

func (s *Service) MarkShipped(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	rows, err := s.repo.TransitionStatus(ctx, s.db, orderID,
		[]domain.OrderStatus{domain.OrderStatusPending},
		domain.OrderStatusShipped, nil)
	if err != nil {
		return domain.Order{}, err
	}
	if rows == 0 {
		return domain.Order{}, domain.ErrInvalidOrderStatus
	}
	return s.GetByOrderID(ctx, orderID)
}

// MarkDelivered runs the activation pipeline for the purchase: the queued
// job places the member (first delivery only) and pays out commissions, and
// only a successful job advances the order. A failed job leaves the order
// untouched so delivery can be retried.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	switch order.Status {
	case domain.OrderStatusDelivered:
		return *order, nil
	case domain.OrderStatusCancelled:
		return domain.Order{}, domain.ErrInvalidOrderStatus
	}

	member, err := s.memberRepo.FindByMemberID(ctx, s.db, order.MemberID)
	if err != nil {
		return domain.Order{}, err
	}
	if member == nil {
		return domain.Order{}, memberdomain.ErrNotFound
	}

	handle, err := s.queue.Enqueue(queue.Job{
		MemberID:   member.MemberID,
		SponsorID:  member.ReferredBy,
		ReferrerID: member.ReferredBy,
		OrderID:    order.OrderID,
		Points:     order.Points,
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := handle.Result(ctx); err != nil {
		s.log.Warn("delivery job failed",
			zap.String("order_id", order.OrderID),
			zap.String("member_id", order.MemberID),
			zap.Error(err),
		)
		return domain.Order{}, err
	}

	now := s.clock.Now()
	rows, err := s.repo.TransitionStatus(ctx, s.db, orderID,
		[]domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusShipped},
		domain.OrderStatusDelivered, &now)
	if err != nil {
		return domain.Order{}, err
	}
	if rows == 0 {
		return domain.Order{}, domain.ErrInvalidOrderStatus
	}

	s.log.Info("order delivered",
		zap.String("order_id", order.OrderID),
		zap.String("member_id", order.MemberID),
		zap.Float64("points", order.Points),
	)
	return s.GetByOrderID(ctx, orderID)
}

func (s *Service) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	rows, err := s.repo.TransitionStatus(ctx, s.db, orderID,
		[]domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusShipped},
		domain.OrderStatusCancelled, nil)
	if err != nil {
		return domain.Order{}, err
	}
	if rows == 0 {
		return domain.Order{}, domain.ErrInvalidOrderStatus
	}
	return s.GetByOrderID(ctx, orderID)
}
