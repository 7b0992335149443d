package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"pmtrack/internal/models"
)

// AuditStore appends audit rows. It always writes through the root handle it
// was built with, so an audit insert never takes part in a request's transaction.
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

type AuditFilter struct {
	UserID     uint
	Action     string
	EntityType string
	EntityID   uint
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

const defaultAuditLimit = 200

func (s *AuditStore) InsertAuditLog(ctx context.Context, row *models.AuditLog) error {
	return s.db.Session(&gorm.Session{NewDB: true, Context: ctx}).Create(row).Error
}

// List returns the newest rows first.
func (s *AuditStore) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Order("created_at desc").Order("id desc")

	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at < ?", f.Until)
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}
	q = q.Limit(limit)
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// ForEntity returns the history of one entity, oldest first.
func (s *AuditStore) ForEntity(ctx context.Context, entityType string, entityID uint) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at asc").
		Order("id asc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
