package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/vendelo/checkout/internal/conversion/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByVendor(ctx context.Context, db *gorm.DB, vendorID snowflake.ID) (*domain.VendorIntegrationConfig, error) {
	var item domain.VendorIntegrationConfig
	err := db.WithContext(ctx).Raw(
		`SELECT *
		 FROM vendor_integration_configs
		 WHERE vendor_id = ?
		 LIMIT 1`,
		vendorID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cfg *domain.VendorIntegrationConfig) error {
	existing, err := r.FindByVendor(ctx, db, cfg.VendorID)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Create(cfg).Error
	}
	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	return db.WithContext(ctx).Save(cfg).Error
}
