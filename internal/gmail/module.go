package gmail

import (
	"go.uber.org/fx"
)

// Module provides the gmail module dependencies
var Module = fx.Options(
	fx.Provide(
		NewClient,
		NewTokenManager,
	),
)
