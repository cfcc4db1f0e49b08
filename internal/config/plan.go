package config

import (
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RankTier maps a referred-customer count threshold to a rank and its monthly
// withdrawal ceiling. Tiers are kept sorted ascending by MinReferred.
type RankTier struct {
	MinReferred          int    `mapstructure:"minReferred"`
	Rank                 string `mapstructure:"rank"`
	MaxMonthlyWithdrawal int64  `mapstructure:"maxMonthlyWithdrawal"`
}

// ClubTier maps a monthly wallet balance threshold to a club membership.
type ClubTier struct {
	MinMonthlyBalance float64 `mapstructure:"minMonthlyBalance"`
	Club              string  `mapstructure:"club"`
}

// PlanConfig carries every tunable of the compensation plan: tree shape,
// commission rates, rank and club tables, withdrawal conversion.
type PlanConfig struct {
	MaxChildren int `mapstructure:"maxChildren"`
	MaxLevel    int `mapstructure:"maxLevel"`

	DirectRate float64 `mapstructure:"directRate"`
	LevelRate  float64 `mapstructure:"levelRate"`
	PoolRate   float64 `mapstructure:"poolRate"`

	WithdrawalMonthlyFloor float64 `mapstructure:"withdrawalMonthlyFloor"`
	PointsPerRupee         float64 `mapstructure:"pointsPerRupee"`
	WithdrawalChargeRate   float64 `mapstructure:"withdrawalChargeRate"`
	MinReferredForWithdraw int     `mapstructure:"minReferredForWithdraw"`

	Ranks []RankTier `mapstructure:"ranks"`
	Clubs []ClubTier `mapstructure:"clubs"`
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		MaxChildren: 3,
		MaxLevel:    15,

		DirectRate: 0.2,
		LevelRate:  0.05,
		PoolRate:   0.01,

		WithdrawalMonthlyFloor: 500,
		PointsPerRupee:         5,
		WithdrawalChargeRate:   0.1,
		MinReferredForWithdraw: 3,

		Ranks: []RankTier{
			{MinReferred: 3, Rank: "Star", MaxMonthlyWithdrawal: 10_000},
			{MinReferred: 10, Rank: "Silver", MaxMonthlyWithdrawal: 50_000},
			{MinReferred: 12, Rank: "Gold", MaxMonthlyWithdrawal: 100_000},
			{MinReferred: 15, Rank: "Ruby", MaxMonthlyWithdrawal: 500_000},
			{MinReferred: 17, Rank: "Platinum", MaxMonthlyWithdrawal: 1_000_000},
			{MinReferred: 20, Rank: "Diamond", MaxMonthlyWithdrawal: 5_000_000},
			{MinReferred: 25, Rank: "Crown", MaxMonthlyWithdrawal: 10_000_000},
		},
		Clubs: []ClubTier{
			{MinMonthlyBalance: 5_000, Club: "Silver"},
			{MinMonthlyBalance: 10_000, Club: "Gold"},
		},
	}
}

// PlanConfigHolder keeps the current plan behind an atomic.Value so readers on
// the commission hot path never block on a reload.
type PlanConfigHolder struct {
	current atomic.Value // holds PlanConfig
}

// NewPlanConfigHolder reads plan.yml when present and watches it for changes;
// missing file means defaults.
func NewPlanConfigHolder() (*PlanConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plan")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/trinet/config")
	v.AddConfigPath("/etc/trinet")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRINET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PlanConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPlanConfig())
		return holder, nil
	}

	cfg, err := unmarshalPlan(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(_ fsnotify.Event) {
		reloaded, err := unmarshalPlan(v)
		if err != nil {
			log.Printf("plan config reload failed: %v", err)
			return
		}
		holder.current.Store(reloaded)
	})
	v.WatchConfig()

	return holder, nil
}

// Current returns the active plan snapshot.
func (h *PlanConfigHolder) Current() PlanConfig {
	if h == nil {
		return DefaultPlanConfig()
	}
	if cfg, ok := h.current.Load().(PlanConfig); ok {
		return cfg
	}
	return DefaultPlanConfig()
}

// Store replaces the active plan. Intended for tests.
func (h *PlanConfigHolder) Store(cfg PlanConfig) {
	h.current.Store(cfg.normalized())
}

// RankFor selects the highest tier whose threshold does not exceed count.
func (c PlanConfig) RankFor(referredCount int) (RankTier, bool) {
	var (
		best  RankTier
		found bool
	)
	for _, tier := range c.Ranks {
		if referredCount >= tier.MinReferred {
			best = tier
			found = true
		}
	}
	return best, found
}

// ClubFor selects the highest club whose threshold does not exceed the
// monthly balance; empty string means no club qualifies.
func (c PlanConfig) ClubFor(monthlyBalance float64) string {
	club := ""
	for _, tier := range c.Clubs {
		if monthlyBalance >= tier.MinMonthlyBalance {
			club = tier.Club
		}
	}
	return club
}

func unmarshalPlan(v *viper.Viper) (PlanConfig, error) {
	cfg := DefaultPlanConfig()
	if err := v.UnmarshalKey("plan", &cfg); err != nil {
		return PlanConfig{}, err
	}
	return cfg.normalized(), nil
}

func (c PlanConfig) normalized() PlanConfig {
	defaults := DefaultPlanConfig()
	if c.MaxChildren <= 0 {
		c.MaxChildren = defaults.MaxChildren
	}
	if c.MaxLevel <= 0 {
		c.MaxLevel = defaults.MaxLevel
	}
	if c.DirectRate <= 0 {
		c.DirectRate = defaults.DirectRate
	}
	if c.LevelRate <= 0 {
		c.LevelRate = defaults.LevelRate
	}
	if c.PoolRate <= 0 {
		c.PoolRate = defaults.PoolRate
	}
	if c.PointsPerRupee <= 0 {
		c.PointsPerRupee = defaults.PointsPerRupee
	}
	if len(c.Ranks) == 0 {
		c.Ranks = defaults.Ranks
	}
	if len(c.Clubs) == 0 {
		c.Clubs = defaults.Clubs
	}
	sort.Slice(c.Ranks, func(i, j int) bool { return c.Ranks[i].MinReferred < c.Ranks[j].MinReferred })
	sort.Slice(c.Clubs, func(i, j int) bool { return c.Clubs[i].MinMonthlyBalance < c.Clubs[j].MinMonthlyBalance })
	return c
}
