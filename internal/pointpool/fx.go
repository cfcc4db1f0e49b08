package pointpool

import (
	"github.com/trinetlabs/trinet/internal/pointpool/repository"
	"github.com/trinetlabs/trinet/internal/pointpool/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pointpool.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
