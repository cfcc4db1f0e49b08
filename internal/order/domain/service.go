package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Order, error)
	ListByMember(ctx context.Context, db *gorm.DB, memberID string, limit int) ([]*Order, error)
	// TransitionStatus moves an order between states with a guard on the
	// current state. Zero rows affected means the order was not in any of
	// the allowed source states.
	TransitionStatus(ctx context.Context, db *gorm.DB, orderID string, from []OrderStatus, to OrderStatus, deliveredAt *time.Time) (int64, error)
}

type CreateOrderRequest struct {
	MemberID string  `json:"member_id"`
	Amount   int64   `json:"amount"`
	Points   float64 `json:"points"`
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)
	GetByOrderID(ctx context.Context, orderID string) (Order, error)
	ListByMember(ctx context.Context, memberID string, limit int) ([]Order, error)
	MarkShipped(ctx context.Context, orderID string) (Order, error)
	// MarkDelivered submits the placement and commission job and waits for
	// its outcome. The order only becomes delivered when the job succeeds.
	MarkDelivered(ctx context.Context, orderID string) (Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
}

var (
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrInvalidOrderAmount = errors.New("invalid_order_amount")
	ErrInvalidOrderStatus = errors.New("invalid_order_status")
)
