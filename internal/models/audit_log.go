package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAuditLogImmutable = errors.New("audit log rows are append-only")

// AuditLog is one immutable record of a mutating action. It references the
// actor and the target entity by id only; the target may be deleted later.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID uint `gorm:"index;not null" json:"user_id"`

	Action     string  `gorm:"size:50;not null;index" json:"action"`                           // project_create, workhour_update ...
	EntityType string  `gorm:"size:50;not null;index:idx_audit_entity" json:"entity_type"`     // project, task, member ...
	EntityID   *uint   `gorm:"index:idx_audit_entity" json:"entity_id,omitempty"`
	EntityName *string `gorm:"size:255" json:"entity_name,omitempty"`

	Details   datatypes.JSON `json:"details"`
	IPAddress *string        `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent *string        `gorm:"size:255" json:"user_agent,omitempty"`
}

func (a *AuditLog) BeforeUpdate(*gorm.DB) error { return ErrAuditLogImmutable }

func (a *AuditLog) BeforeDelete(*gorm.DB) error { return ErrAuditLogImmutable }
