package tokenization

import (
	"github.com/vendelo/checkout/internal/tokenization/securefield"
	"github.com/vendelo/checkout/internal/tokenization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tokenization.service",
	fx.Provide(securefield.NewRegistry),
	fx.Provide(service.NewService),
)
