package tablesession

import (
	"github.com/smallbiznis/lokma/internal/tablesession/repository"
	"github.com/smallbiznis/lokma/internal/tablesession/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tablesession.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
