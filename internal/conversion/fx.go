package conversion

import (
	"github.com/vendelo/checkout/internal/conversion/domain"
	"github.com/vendelo/checkout/internal/conversion/repository"
	"github.com/vendelo/checkout/internal/conversion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Dispatcher { return s }),
)
