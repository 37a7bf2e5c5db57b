package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records who changed what. Every discount state transition writes
// exactly one entry; writing is fire-and-forget from the caller's point of
// view (a failed audit write never rolls back the transition).
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID     uint   `gorm:"index" json:"user_id"`
	Action     string `gorm:"size:50;not null;index" json:"action"` // e.g. "discount_requested", "discount_approved"
	EntityType string `gorm:"size:50;not null;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`
	EntityName string `gorm:"size:255" json:"entity_name,omitempty"`

	OldValues datatypes.JSON `json:"old_values,omitempty"`
	NewValues datatypes.JSON `json:"new_values,omitempty"`

	// CorrelationID ties the audit entry to the approval request it belongs
	// to, when there is one.
	CorrelationID string `gorm:"size:36;index" json:"correlation_id,omitempty"`
}
