package store

import (
	"context"

	"github.com/mailsentry/mailsentry/internal/config"
	"go.uber.org/fx"
)

func newStore(lc fx.Lifecycle, cfg *config.Config) (*MongoStore, error) {
	s, err := NewMongoStore(context.Background(), &cfg.Mongo)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close(ctx)
		},
	})
	return s, nil
}

// Module provides the store module dependencies
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			newStore,
			fx.As(new(Sessions)),
			fx.As(new(Ledger)),
		),
	),
)
