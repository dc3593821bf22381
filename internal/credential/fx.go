package credential

import (
	"github.com/vendelo/checkout/internal/credential/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("credential.vault",
	fx.Provide(repository.Provide),
)
