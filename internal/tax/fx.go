package tax

import (
	"github.com/smallbiznis/lokma/internal/tax/domain"
	"github.com/smallbiznis/lokma/internal/tax/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("tax.service",
	fx.Provide(service.NewResolver),
	fx.Invoke(func(resolver domain.Resolver, log *zap.Logger) {
		for _, rate := range resolver.Rates() {
			log.Info("vat rate loaded", zap.String("key", string(rate.Key)), zap.String("percent", rate.Percent.String()))
		}
	}),
)
