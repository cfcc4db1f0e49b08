package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/trinetlabs/trinet/internal/clock"
	"github.com/trinetlabs/trinet/internal/commission"
	"github.com/trinetlabs/trinet/internal/config"
	"github.com/trinetlabs/trinet/internal/member"
	"github.com/trinetlabs/trinet/internal/migration"
	"github.com/trinetlabs/trinet/internal/observability"
	"github.com/trinetlabs/trinet/internal/order"
	"github.com/trinetlabs/trinet/internal/pointpool"
	"github.com/trinetlabs/trinet/internal/queue"
	"github.com/trinetlabs/trinet/internal/ratelimit"
	"github.com/trinetlabs/trinet/internal/reward"
	"github.com/trinetlabs/trinet/internal/scheduler"
	"github.com/trinetlabs/trinet/internal/server"
	"github.com/trinetlabs/trinet/internal/tree"
	"github.com/trinetlabs/trinet/internal/wallet"
	"github.com/trinetlabs/trinet/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		ratelimit.Module,

		// Functional domains
		member.Module,
		wallet.Module,
		pointpool.Module,
		reward.Module,
		tree.Module,
		commission.Module,
		queue.Module,
		order.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
