package order

import (
	"github.com/trinetlabs/trinet/internal/order/repository"
	"github.com/trinetlabs/trinet/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
