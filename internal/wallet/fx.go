package wallet

import (
	"github.com/trinetlabs/trinet/internal/wallet/repository"
	"github.com/trinetlabs/trinet/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
