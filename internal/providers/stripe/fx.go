package stripe

import "go.uber.org/fx"

var Module = fx.Module("providers.stripe",
	fx.Provide(
		New,
		func(c *Client) API { return c },
	),
)
