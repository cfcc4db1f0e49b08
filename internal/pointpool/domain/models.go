package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// GlobalPointPool accumulates all points credited in a calendar month. A
// share of it is paid out to qualifying members after the month closes.
type GlobalPointPool struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Month         int          `gorm:"not null;uniqueIndex:uq_global_point_pools_period,priority:1" json:"month"`
	Year          int          `gorm:"not null;uniqueIndex:uq_global_point_pools_period,priority:2" json:"year"`
	TotalPoints   float64      `gorm:"not null;default:0" json:"total_points"`
	Distributed   bool         `gorm:"not null;default:false" json:"distributed"`
	DistributedAt *time.Time   `json:"distributed_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (GlobalPointPool) TableName() string { return "global_point_pools" }
