package migration

import (
	conversiondomain "github.com/vendelo/checkout/internal/conversion/domain"
	credentialdomain "github.com/vendelo/checkout/internal/credential/domain"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module creates the core tables on startup so local and self-hosted
// environments work out of the box.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(
			&orderdomain.Order{},
			&conversiondomain.VendorIntegrationConfig{},
			&credentialdomain.GatewayCredential{},
		)
	}),
)
