package reward

import (
	"github.com/trinetlabs/trinet/internal/reward/repository"
	"github.com/trinetlabs/trinet/internal/reward/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reward.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
