package referral

import "go.uber.org/fx"

// Module exposes the referral benefit engine via Fx.
var Module = fx.Options(
	fx.Provide(NewUserStore),
	fx.Provide(NewService),
)
