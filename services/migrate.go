package services

import (
	"context"
	"fmt"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"gorm.io/gorm"
)

// Migrate creates or updates every table and seeds the CLOSED phase row.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		db = config.DB
	}
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	row, err := NewToggleStore(db).Phase(ctx)
	if err != nil {
		return err
	}
	recordPhaseGauge(row.CurrentPhase)
	return nil
}
