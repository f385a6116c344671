package offering

import (
	"github.com/smallbiznis/blsuntech/internal/offering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("offering.service",
	fx.Provide(service.New),
)
