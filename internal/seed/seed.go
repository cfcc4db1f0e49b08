package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
	"gorm.io/gorm"
)

var defaultThresholds = []rewarddomain.RewardThreshold{
	{Points: 1_000, Reward: "Smartwatch"},
	{Points: 5_000, Reward: "Smartphone"},
	{Points: 25_000, Reward: "Goa Trip"},
	{Points: 100_000, Reward: "Motorbike"},
	{Points: 500_000, Reward: "Car Down Payment"},
}

// EnsureRewardThresholds seeds the default reward ladder on first boot.
// A non-empty table, including one an admin has edited, is left untouched.
func EnsureRewardThresholds(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&rewarddomain.RewardThreshold{}).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		for _, threshold := range defaultThresholds {
			threshold.ID = node.Generate()
			if err := tx.Create(&threshold).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
