package migration

import (
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	orderdomain "github.com/trinetlabs/trinet/internal/order/domain"
	pooldomain "github.com/trinetlabs/trinet/internal/pointpool/domain"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
	"github.com/trinetlabs/trinet/internal/seed"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DisableStartupMigration {
			return nil
		}

		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		return seed.EnsureRewardThresholds(conn)
	}),
)

// AutoMigrate creates the schema through GORM for databases the embedded SQL
// migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&memberdomain.Member{},
		&walletdomain.Wallet{},
		&walletdomain.WalletTransaction{},
		&walletdomain.Withdrawal{},
		&orderdomain.Order{},
		&pooldomain.GlobalPointPool{},
		&rewarddomain.RewardThreshold{},
		&rewarddomain.Reward{},
	)
}
