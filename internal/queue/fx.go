package queue

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("queue",
	fx.Provide(NewActivationProcessor),
	fx.Provide(func(p *ActivationProcessor) Processor { return p }),
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, q *Queue) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			q.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			q.Stop()
			return nil
		},
	})
}
