package services

import (
	"context"
	"errors"
	"time"

	"pkm-review-api/config"
	"pkm-review-api/models"

	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	ToggleKey models.ToggleKey
	ActorID   int
	BatchID   string
	Since     *time.Time
	Until     *time.Time
}

// AuditLogService appends and reads toggle audit entries. Entries are never
// updated or deleted.
type AuditLogService struct {
	db *gorm.DB
}

// NewAuditLogService instantiates the service.
func NewAuditLogService(db *gorm.DB) *AuditLogService {
	if db == nil {
		db = config.DB
	}
	return &AuditLogService{db: db}
}

// WithTx returns a copy writing through tx.
func (s *AuditLogService) WithTx(tx *gorm.DB) *AuditLogService {
	return &AuditLogService{db: tx}
}

// Append inserts entry. AuditID and CreatedAt are assigned on insert.
func (s *AuditLogService) Append(ctx context.Context, entry *models.ToggleAuditLog) error {
	if entry == nil {
		return errors.New("audit entry is nil")
	}
	if entry.AuditID != 0 {
		return validationErr("audit entries are append-only")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return persistenceErr("append audit entry", err)
	}
	return nil
}

// Query returns matching entries newest first. limit <= 0 uses the default
// page size and is capped at maxAuditLimit.
func (s *AuditLogService) Query(ctx context.Context, filter AuditFilter, limit int) ([]models.ToggleAuditLog, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	query := s.db.WithContext(ctx).Model(&models.ToggleAuditLog{})
	if filter.ToggleKey != "" {
		query = query.Where("toggle_key = ?", filter.ToggleKey)
	}
	if filter.ActorID > 0 {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.BatchID != "" {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at <= ?", *filter.Until)
	}

	entries := make([]models.ToggleAuditLog, 0)
	if err := query.Order("audit_id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, persistenceErr("query audit log", err)
	}
	return entries, nil
}
