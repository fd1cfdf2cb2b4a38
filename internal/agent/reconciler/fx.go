package reconciler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("agent.reconciler",
	fx.Provide(New),
	fx.Invoke(start),
)

func start(lc fx.Lifecycle, r *Reconciler) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				r.Run(runCtx)
			}()
			// Pick up anything left over from a previous process.
			r.Kick()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
