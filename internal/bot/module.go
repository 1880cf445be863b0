package bot

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the bot module dependencies and starts the update loop
// on application start.
var Module = fx.Options(
	fx.Provide(
		New,
	),
	fx.Invoke(func(lc fx.Lifecycle, b *Bot) {
		loopCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					b.Run(loopCtx)
				}()
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
	}),
)
