package tree

import "go.uber.org/fx"

var Module = fx.Module("tree.engine",
	fx.Provide(NewEngine),
)
