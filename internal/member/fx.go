package member

import (
	"github.com/trinetlabs/trinet/internal/member/repository"
	"github.com/trinetlabs/trinet/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
