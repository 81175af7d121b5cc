package paystack

import "go.uber.org/fx"

var Module = fx.Module("gateway.paystack",
	fx.Provide(New),
)
