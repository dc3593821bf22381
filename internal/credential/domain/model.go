package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidVendor  = errors.New("invalid_vendor")
	ErrInvalidGateway = errors.New("invalid_gateway")
)

// GatewayCredential is a vendor's secret for one integration. The raw secret
// lives only in the vault table; everything downstream works with the
// normalized value and logs its fingerprint.
type GatewayCredential struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	VendorID    snowflake.ID `json:"vendor_id" gorm:"not null;index:ux_vendor_gateway_credentials,priority:1,unique"`
	GatewayName string       `json:"gateway_name" gorm:"type:text;not null;index:ux_vendor_gateway_credentials,priority:2,unique"`
	Secret      string       `json:"-" gorm:"type:text;not null"`
	IsActive    bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (GatewayCredential) TableName() string { return "vendor_gateway_credentials" }

// Vault retrieves per-vendor integration secrets. The checkout core only
// reads; writes belong to the vendor dashboard.
type Vault interface {
	GetCredential(ctx context.Context, vendorID snowflake.ID, gatewayName string) (raw string, found bool, err error)
}
