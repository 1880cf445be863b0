package poller

import (
	"context"

	"github.com/mailsentry/mailsentry/internal/gmail"
	"github.com/mailsentry/mailsentry/internal/notify"
	"go.uber.org/fx"
)

// Module provides the poller module dependencies and starts the scheduler
// loop on application start.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			func(c *gmail.Client) *gmail.Client { return c },
			fx.As(new(Fetcher)),
		),
		fx.Annotate(
			func(m *gmail.TokenManager) *gmail.TokenManager { return m },
			fx.As(new(CredentialRefresher)),
		),
		fx.Annotate(
			func(d *notify.Dispatcher) *notify.Dispatcher { return d },
			fx.As(new(Notifier)),
		),
		NewCycle,
		NewScheduler,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		loopCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					s.Run(loopCtx)
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
