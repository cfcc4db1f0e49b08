package repository

import (
	"context"
	"errors"
	"time"

	"github.com/trinetlabs/trinet/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) ListByMember(ctx context.Context, db *gorm.DB, memberID string, limit int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var orders []*domain.Order
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, orderID string, from []domain.OrderStatus, to domain.OrderStatus, deliveredAt *time.Time) (int64, error) {
	fields := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if deliveredAt != nil {
		fields["delivered_at"] = *deliveredAt
	}

	result := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("order_id = ? AND status IN ?", orderID, from).
		Updates(fields)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
