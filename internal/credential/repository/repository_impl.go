package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/vendelo/checkout/internal/credential/domain"
	"gorm.io/gorm"
)

type vault struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Vault {
	return &vault{db: db}
}

func (v *vault) GetCredential(ctx context.Context, vendorID snowflake.ID, gatewayName string) (string, bool, error) {
	if vendorID == 0 {
		return "", false, domain.ErrInvalidVendor
	}
	gatewayName = strings.ToLower(strings.TrimSpace(gatewayName))
	if gatewayName == "" {
		return "", false, domain.ErrInvalidGateway
	}

	var item domain.GatewayCredential
	err := v.db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, gateway_name, secret, is_active
		 FROM vendor_gateway_credentials
		 WHERE vendor_id = ? AND gateway_name = ? AND is_active = ?
		 LIMIT 1`,
		vendorID,
		gatewayName,
		true,
	).Scan(&item).Error
	if err != nil {
		return "", false, err
	}
	if item.ID == 0 {
		return "", false, nil
	}
	return item.Secret, true, nil
}
