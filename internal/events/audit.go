package events

import (
	"encoding/json"
	"time"

	"pmtrack/internal/models"
)

// AuditMessage is the wire form of a stored audit row.
type AuditMessage struct {
	ID         uint            `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	UserID     uint            `json:"user_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *uint           `json:"entity_id,omitempty"`
	EntityName *string         `json:"entity_name,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  *string         `json:"ip_address,omitempty"`
	UserAgent  *string         `json:"user_agent,omitempty"`
}

func NewAuditMessage(row models.AuditLog) AuditMessage {
	msg := AuditMessage{
		ID:         row.ID,
		CreatedAt:  row.CreatedAt,
		UserID:     row.UserID,
		Action:     row.Action,
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		EntityName: row.EntityName,
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
	}
	if len(row.Details) > 0 {
		msg.Details = json.RawMessage(row.Details)
	}
	return msg
}

func AuditSubject(entityType string) string {
	return AuditSubjectPrefix + entityType
}
