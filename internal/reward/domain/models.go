package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RewardThreshold names the prize granted when a member's lifetime balance
// crosses a point mark.
type RewardThreshold struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Points    float64      `gorm:"not null;uniqueIndex" json:"points"`
	Reward    string       `gorm:"type:varchar(255);not null" json:"reward"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (RewardThreshold) TableName() string { return "reward_thresholds" }

// Reward records a prize credited to a member. At most one per member and
// threshold.
type Reward struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID        string       `gorm:"type:varchar(16);not null;index;uniqueIndex:uq_rewards_member_threshold,priority:1" json:"member_id"`
	ThresholdPoints float64      `gorm:"not null;uniqueIndex:uq_rewards_member_threshold,priority:2" json:"threshold_points"`
	Reward          string       `gorm:"type:varchar(255);not null" json:"reward"`
	AwardedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"awarded_at"`
}

// TableName sets the database table name.
func (Reward) TableName() string { return "rewards" }
