package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Approval request statuses.
const (
	ApprovalRequestPending  = "pending"
	ApprovalRequestDecided  = "decided"
	ApprovalRequestWithdraw = "withdrawn"
)

// ApprovalRequest is the persisted record of a discount approval being routed
// to a role's members. Delivery (email, in-app notification) is handled by an
// external service; this row is the engine-side boundary.
type ApprovalRequest struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EntityType string `gorm:"size:50;not null;index" json:"entity_type"` // "quote" or "quote_line_item"
	EntityID   uint   `gorm:"not null;index" json:"entity_id"`

	RequestorID    uint   `gorm:"index" json:"requestor_id"`
	RequiredRoleID uint   `gorm:"index" json:"required_role_id"`
	Notes          string `gorm:"type:text" json:"notes,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	Status    string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	DecidedBy *uint      `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}
