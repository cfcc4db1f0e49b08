package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a member purchase. Delivery is the activation trigger: points
// only flow into wallets once the order is marked delivered.
type Order struct {
	ID          snowflake.ID `json:"id,string" gorm:"primaryKey"`
	OrderID     string       `json:"order_id" gorm:"uniqueIndex;size:32"`
	MemberID    string       `json:"member_id" gorm:"index;size:16"`
	Amount      int64        `json:"amount"`
	Points      float64      `json:"points"`
	Status      OrderStatus  `json:"status" gorm:"index;size:16;default:pending"`
	DeliveredAt *time.Time   `json:"delivered_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
