package invoice

import (
	"github.com/smallbiznis/lokma/internal/invoice/repository"
	"github.com/smallbiznis/lokma/internal/invoice/sequence"
	"github.com/smallbiznis/lokma/internal/invoice/service"
	"github.com/smallbiznis/lokma/internal/tax"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	tax.Module,
	fx.Provide(repository.Provide),
	fx.Provide(sequence.NewAllocator),
	fx.Provide(service.NewService),
)
