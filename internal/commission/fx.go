package commission

import (
	"github.com/smallbiznis/lokma/internal/commission/repository"
	"github.com/smallbiznis/lokma/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
